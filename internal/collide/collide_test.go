// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collide

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/internal/wikidata"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

type mockGraph struct {
	byName   map[string][]string
	entities map[string]*wikidata.Entity
	findErr  error
}

func (m *mockGraph) FindByTaxonName(_ context.Context, name string) ([]string, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byName[name], nil
}

func (m *mockGraph) GetEntity(_ context.Context, id string) (*wikidata.Entity, error) {
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	return e, nil
}

func rec(id, name string, alternates ...string) *types.TaxonRecord {
	return &types.TaxonRecord{LocalID: id, ScientificName: name, Alternates: alternates}
}

func TestResolveOwnerKeepsDisputed(t *testing.T) {
	// The existing record's name equals the disputed entity's taxon name;
	// the incoming trinomial reroutes to its subspecies entity.
	g := &mockGraph{
		byName: map[string][]string{
			"Panthera leo persica": {"Q36611"},
		},
		entities: map[string]*wikidata.Entity{
			"Q140":   {ID: "Q140", TaxonName: "Panthera leo", RankLabel: "species"},
			"Q36611": {ID: "Q36611", TaxonName: "Panthera leo persica", RankLabel: "subspecies"},
		},
	}
	r := &Resolver{Graph: g}

	res, err := r.Resolve(context.Background(),
		rec("ex", "Panthera leo"), rec("in", "Panthera leo persica"), "Q140")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ExistingID != "Q140" {
		t.Errorf("ExistingID = %q, want Q140", res.ExistingID)
	}
	if res.IncomingID != "Q36611" {
		t.Errorf("IncomingID = %q, want Q36611", res.IncomingID)
	}
}

func TestResolveIncomingOwnsDisputed(t *testing.T) {
	// The incoming record owns the disputed name; the existing side moves
	// to an alternate's identifier.
	g := &mockGraph{
		byName: map[string][]string{
			"Antennatus coccineus": {"Q2865759"},
		},
		entities: map[string]*wikidata.Entity{
			"Q1076339": {ID: "Q1076339", TaxonName: "Abantennarius coccineus", RankLabel: "species"},
		},
	}
	r := &Resolver{Graph: g}

	res, err := r.Resolve(context.Background(),
		rec("ex", "Antennarius moluccensis", "Antennatus coccineus"),
		rec("in", "Abantennarius coccineus"), "Q1076339")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.IncomingID != "Q1076339" {
		t.Errorf("IncomingID = %q, want Q1076339", res.IncomingID)
	}
	if res.ExistingID != "Q2865759" {
		t.Errorf("ExistingID = %q, want Q2865759", res.ExistingID)
	}
}

func TestResolveSensuLatoKeepsSpeciesLevel(t *testing.T) {
	g := &mockGraph{
		byName: map[string][]string{
			"Apistogramma regani": {"Q2860761"},
		},
		entities: map[string]*wikidata.Entity{
			"Q630371": {ID: "Q630371", TaxonName: "Apistogramma regani", RankLabel: "species"},
		},
	}
	r := &Resolver{Graph: g}

	// Existing non-complex side gets rerouted even though its name also
	// matches the disputed entity.
	res, err := r.Resolve(context.Background(),
		rec("ex", "Apistogramma regani"),
		rec("in", "Apistogramma regani sensu lato"), "Q630371")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.IncomingID != "Q630371" {
		t.Errorf("IncomingID = %q, want the species-level Q630371", res.IncomingID)
	}
	if res.ExistingID == "Q630371" {
		t.Errorf("ExistingID = %q, must not reuse the disputed identifier", res.ExistingID)
	}
	if res.ExistingID != "Q2860761" {
		t.Errorf("ExistingID = %q, want Q2860761", res.ExistingID)
	}
}

func TestResolveOnlyOneValidIdentifier(t *testing.T) {
	// No alternative exists for the incoming side: it resolves to none
	// rather than reusing the disputed identifier.
	g := &mockGraph{
		entities: map[string]*wikidata.Entity{
			"Q140": {ID: "Q140", TaxonName: "Panthera leo", RankLabel: "species"},
		},
	}
	r := &Resolver{Graph: g}

	res, err := r.Resolve(context.Background(),
		rec("ex", "Panthera leo"), rec("in", "Panthera leo nubica"), "Q140")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ExistingID != "Q140" {
		t.Errorf("ExistingID = %q, want Q140", res.ExistingID)
	}
	if res.IncomingID != "" {
		t.Errorf("IncomingID = %q, want none", res.IncomingID)
	}
	if !res.NoOp("Q140") {
		t.Error("outcome should be a no-op")
	}
}

func TestResolveOutputsNeverEqual(t *testing.T) {
	// Whatever the inputs, both outputs present implies distinct.
	cases := []struct {
		existing, incoming *types.TaxonRecord
	}{
		{rec("a", "Panthera leo"), rec("b", "Panthera leo")},
		{rec("a", "Panthera leo persica"), rec("b", "Panthera leo persica")},
		{rec("a", "Felis leo", "Panthera leo"), rec("b", "Panthera leo")},
	}
	g := &mockGraph{
		byName: map[string][]string{
			"Panthera leo": {"Q140"},
			"Felis leo":    {"Q140"},
		},
		entities: map[string]*wikidata.Entity{
			"Q140": {ID: "Q140", TaxonName: "Panthera leo", RankLabel: "species"},
		},
	}
	r := &Resolver{Graph: g}

	for i, c := range cases {
		res, err := r.Resolve(context.Background(), c.existing, c.incoming, "Q140")
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if res.ExistingID != "" && res.ExistingID == res.IncomingID {
			t.Errorf("case %d: both sides resolved to %q", i, res.ExistingID)
		}
	}
}

func TestResolveTransientPropagates(t *testing.T) {
	g := &mockGraph{
		findErr: fmt.Errorf("endpoint down: %w", httputil.ErrTransient),
		entities: map[string]*wikidata.Entity{
			"Q140": {ID: "Q140", TaxonName: "Panthera leo", RankLabel: "species"},
		},
	}
	r := &Resolver{Graph: g}

	_, err := r.Resolve(context.Background(),
		rec("ex", "Panthera leo"), rec("in", "Panthera leo persica"), "Q140")
	if !errors.Is(err, httputil.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}

func TestIsSensuLato(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Apistogramma regani sensu lato", true},
		{"Apistogramma regani s.l.", true},
		{"Apistogramma regani", false},
		{"Panthera leo", false},
	}
	for _, tt := range tests {
		if got := isSensuLato(tt.name); got != tt.want {
			t.Errorf("isSensuLato(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
