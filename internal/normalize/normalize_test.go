// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"reflect"
	"testing"
)

func TestNameSynonyms(t *testing.T) {
	got := Name("Abantennarius coccineus(Syn.: Antennatus coccineus)(Syn.: Antennarius coccineus)")

	if got.Canonical != "Abantennarius coccineus" {
		t.Errorf("Canonical = %q, want %q", got.Canonical, "Abantennarius coccineus")
	}
	want := []string{"Antennatus coccineus", "Antennarius coccineus"}
	if !reflect.DeepEqual(got.Alternates, want) {
		t.Errorf("Alternates = %v, want %v", got.Alternates, want)
	}
}

func TestNameAbbreviationExpansion(t *testing.T) {
	got := Name("Amazona farinosa farinosa(Syn.: A. f. chapmani)(Syn.: A. f. inornata)")

	if got.Canonical != "Amazona farinosa farinosa" {
		t.Errorf("Canonical = %q, want %q", got.Canonical, "Amazona farinosa farinosa")
	}
	want := []string{"Amazona farinosa chapmani", "Amazona farinosa inornata"}
	if !reflect.DeepEqual(got.Alternates, want) {
		t.Errorf("Alternates = %v, want %v", got.Alternates, want)
	}
}

func TestNameQualifierTradeCodeLocality(t *testing.T) {
	got := Name("Panaque cf. armbrusteri(L 27 Rio Araguaia)")

	if got.Canonical != "Panaque armbrusteri" {
		t.Errorf("Canonical = %q, want %q", got.Canonical, "Panaque armbrusteri")
	}
	if got.Qualifier != "cf" {
		t.Errorf("Qualifier = %q, want %q", got.Qualifier, "cf")
	}
	if got.QualifierTarget != "armbrusteri" {
		t.Errorf("QualifierTarget = %q, want %q", got.QualifierTarget, "armbrusteri")
	}
	if got.TradeCode != "L27" {
		t.Errorf("TradeCode = %q, want %q", got.TradeCode, "L27")
	}
	if got.Locality != "Rio Araguaia" {
		t.Errorf("Locality = %q, want %q", got.Locality, "Rio Araguaia")
	}
}

func TestNameTable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Result
	}{
		{
			name: "empty input",
			raw:  "",
			want: Result{},
		},
		{
			name: "whitespace only",
			raw:  "   ",
			want: Result{},
		},
		{
			name: "plain binomial",
			raw:  "Betta splendens",
			want: Result{Canonical: "Betta splendens"},
		},
		{
			name: "genus only gains placeholder species",
			raw:  "Apistogramma",
			want: Result{Canonical: "Apistogramma sp."},
		},
		{
			name: "explicit placeholder species kept",
			raw:  "Apistogramma sp.",
			want: Result{Canonical: "Apistogramma sp."},
		},
		{
			name: "aff qualifier",
			raw:  "Hypancistrus aff. zebra",
			want: Result{Canonical: "Hypancistrus zebra", Qualifier: "aff", QualifierTarget: "zebra"},
		},
		{
			name: "quoted locality",
			raw:  `Apistogramma sp. "Rotpunkt"`,
			want: Result{Canonical: "Apistogramma sp.", Locality: "Rotpunkt"},
		},
		{
			name: "trade code without locality",
			raw:  "Hypancistrus zebra(L-46)",
			want: Result{Canonical: "Hypancistrus zebra", TradeCode: "L46"},
		},
		{
			name: "inclusion annotation",
			raw:  "Corydoras aeneus(inkl.: Corydoras schultzei)",
			want: Result{Canonical: "Corydoras aeneus", Alternates: []string{"Corydoras schultzei"}},
		},
		{
			name: "synonym genus starting with Syn is not a marker",
			raw:  "Synodontis njassae(Synodontis zambezensis)",
			want: Result{Canonical: "Synodontis njassae", Alternates: []string{"Synodontis zambezensis"}},
		},
		{
			name: "lake locality segment",
			raw:  "Tropheus moorii(Lake Tanganyika)",
			want: Result{Canonical: "Tropheus moorii", Locality: "Lake Tanganyika"},
		},
		{
			name: "nested brackets stay in one segment",
			raw:  "Panaque nigrolineatus(Syn.: Panaque (Panaque) nigrolineatus)",
			want: Result{Canonical: "Panaque nigrolineatus", Alternates: []string{"Panaque Panaque nigrolineatus"}},
		},
		{
			name: "unterminated segment kept",
			raw:  "Betta splendens(Syn.: Betta pugnax",
			want: Result{Canonical: "Betta splendens", Alternates: []string{"Betta pugnax"}},
		},
		{
			name: "abbreviation without context stays abbreviated",
			raw:  "A. ocellaris",
			want: Result{Canonical: "A. ocellaris"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Name(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Name(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNameGenusContextAcrossSegments(t *testing.T) {
	// The genus context established by one alternate carries into the next.
	got := Name("Apistogramma agassizii(Syn.: Apistogramma parva)(Syn.: A. agassizii parva)")
	want := []string{"Apistogramma parva", "Apistogramma agassizii parva"}
	if !reflect.DeepEqual(got.Alternates, want) {
		t.Errorf("Alternates = %v, want %v", got.Alternates, want)
	}
}
