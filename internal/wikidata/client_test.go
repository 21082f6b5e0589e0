// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package wikidata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

func testClient() *Client {
	return New(types.GraphConfig{
		HTTPConfig:  types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		SearchLimit: 10,
		MaxRetries:  2,
	})
}

func TestValidID(t *testing.T) {
	valid := []string{"Q1", "Q140", "Q18498049"}
	invalid := []string{"", "Q", "Q0", "Q01", "140", "q140", "Q140x", "P225", "Q140 "}
	for _, s := range valid {
		if !ValidID(s) {
			t.Errorf("ValidID(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if ValidID(s) {
			t.Errorf("ValidID(%q) = true, want false", s)
		}
	}
}

func TestFindByTaxonName(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		fmt.Fprint(w, `{"results":{"bindings":[
			{"item":{"value":"http://www.wikidata.org/entity/Q140"}},
			{"item":{"value":"http://www.wikidata.org/entity/Q15294345"}}
		]}}`)
	}))
	defer ts.Close()

	old := sparqlBase
	sparqlBase = ts.URL
	defer func() { sparqlBase = old }()

	ids, err := testClient().FindByTaxonName(context.Background(), "Panthera leo")
	if err != nil {
		t.Fatalf("FindByTaxonName: %v", err)
	}
	want := []string{"Q140", "Q15294345"}
	if len(ids) != 2 || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestFindByTaxonNameNoHits(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":{"bindings":[]}}`)
	}))
	defer ts.Close()

	old := sparqlBase
	sparqlBase = ts.URL
	defer func() { sparqlBase = old }()

	ids, err := testClient().FindByTaxonName(context.Background(), "Nonexistus imaginarius")
	if err != nil {
		t.Fatalf("FindByTaxonName: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
}

func TestSearchEntities(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "wbsearchentities" {
			t.Errorf("action = %q, want wbsearchentities", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		fmt.Fprint(w, `{"search":[
			{"id":"Q140","label":"lion","description":"species of big cat"},
			{"id":"Q36611","label":"Panthera leo persica","description":"subspecies of lion"}
		]}`)
	}))
	defer ts.Close()

	old := apiBase
	apiBase = ts.URL
	defer func() { apiBase = old }()

	hits, err := testClient().SearchEntities(context.Background(), "lion", 0)
	if err != nil {
		t.Fatalf("SearchEntities: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].ID != "Q140" || hits[0].Label != "lion" {
		t.Errorf("hits[0] = %+v", hits[0])
	}
}

func TestGetEntity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "Q140" {
			t.Errorf("ids = %q, want Q140", got)
		}
		fmt.Fprint(w, `{"entities":{"Q140":{
			"claims":{
				"P225":[{"mainsnak":{"datavalue":{"value":"Panthera leo"}}}],
				"P105":[{"mainsnak":{"datavalue":{"value":{"entity-type":"item","id":"Q7432"}}}}],
				"P171":[{"mainsnak":{"datavalue":{"value":{"entity-type":"item","id":"Q127960"}}}}],
				"P141":[{"mainsnak":{"datavalue":{"value":{"entity-type":"item","id":"Q278113"}}}}]
			},
			"labels":{"en":{"language":"en","value":"lion"},"de":{"language":"de","value":"Löwe"}},
			"sitelinks":{
				"enwiki":{"site":"enwiki","title":"Lion"},
				"dewiki":{"site":"dewiki","title":"Löwe"},
				"commonswiki":{"site":"commonswiki","title":"Panthera leo"}
			}
		}}}`)
	}))
	defer ts.Close()

	old := apiBase
	apiBase = ts.URL
	defer func() { apiBase = old }()

	e, err := testClient().GetEntity(context.Background(), "Q140")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if e.TaxonName != "Panthera leo" {
		t.Errorf("TaxonName = %q", e.TaxonName)
	}
	if e.RankLabel != "species" {
		t.Errorf("RankLabel = %q, want species", e.RankLabel)
	}
	if e.ParentID != "Q127960" {
		t.Errorf("ParentID = %q", e.ParentID)
	}
	if e.ConservationStatus != "VU" {
		t.Errorf("ConservationStatus = %q, want VU", e.ConservationStatus)
	}
	if e.Labels["en"] != "lion" || e.Labels["de"] != "Löwe" {
		t.Errorf("Labels = %v", e.Labels)
	}
	if e.Sitelinks["en"] != "https://en.wikipedia.org/wiki/Lion" {
		t.Errorf("Sitelinks[en] = %q", e.Sitelinks["en"])
	}
	if _, ok := e.Sitelinks["commons"]; ok {
		t.Error("commonswiki should not produce a sitelink")
	}
}

func TestGetEntityMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"entities":{"Q999999999":{"missing":""}}}`)
	}))
	defer ts.Close()

	old := apiBase
	apiBase = ts.URL
	defer func() { apiBase = old }()

	if _, err := testClient().GetEntity(context.Background(), "Q999999999"); err == nil {
		t.Fatal("expected error for missing entity")
	}
}

func TestGetEntityMalformedID(t *testing.T) {
	if _, err := testClient().GetEntity(context.Background(), "not-an-id"); err == nil {
		t.Fatal("expected error for malformed identifier")
	}
}

func TestAuthFailureIsFatal(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	old := sparqlBase
	sparqlBase = ts.URL
	defer func() { sparqlBase = old }()

	_, err := testClient().FindByTaxonName(context.Background(), "Panthera leo")
	if !errors.Is(err, httputil.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (auth failures are never retried)", calls)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	old := apiBase
	apiBase = ts.URL
	defer func() { apiBase = old }()

	_, err := testClient().SearchEntities(context.Background(), "lion", 5)
	if !errors.Is(err, httputil.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (configured max attempts)", calls)
	}
}
