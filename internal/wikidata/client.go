// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package wikidata queries the Wikidata knowledge graph: exact taxon-name
// property matches, free-text entity search, and entity fetches for
// enrichment. All calls retry transient failures with bounded backoff.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// API endpoints. Declared as vars so tests can substitute httptest servers.
var (
	sparqlBase = "https://query.wikidata.org/sparql"
	apiBase    = "https://www.wikidata.org/w/api.php"
)

// entityPrefix is stripped from SPARQL entity URIs to recover the bare identifier.
const entityPrefix = "http://www.wikidata.org/entity/"

// idPattern is the strict identifier syntax. Anything else is rejected as
// malformed, never retried.
var idPattern = regexp.MustCompile(`^Q[1-9]\d*$`)

// ValidID reports whether s is a well-formed entity identifier.
func ValidID(s string) bool { return idPattern.MatchString(s) }

// Client talks to the Wikidata endpoints.
type Client struct {
	HTTP *http.Client
	Cfg  types.GraphConfig
}

// New returns a Client with the configured timeout applied.
func New(cfg types.GraphConfig) *Client {
	return &Client{
		HTTP: &http.Client{Timeout: cfg.Timeout},
		Cfg:  cfg,
	}
}

// FindByTaxonName returns the identifiers of entities whose taxon-name
// property equals name exactly. Order follows the service response.
func (c *Client) FindByTaxonName(ctx context.Context, name string) ([]string, error) {
	query := fmt.Sprintf(`SELECT ?item WHERE { ?item wdt:P225 %q } LIMIT 5`, name)

	params := url.Values{
		"query":  {query},
		"format": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sparqlBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.Cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("SPARQL request: %w: %v", httputil.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := httputil.ClassifyStatus("SPARQL endpoint", resp.StatusCode); err != nil {
		return nil, err
	}

	var sr sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing SPARQL response: %w", err)
	}

	var ids []string
	for _, b := range sr.Results.Bindings {
		id := strings.TrimPrefix(b.Item.Value, entityPrefix)
		if ValidID(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SearchHit is one free-text search result.
type SearchHit struct {
	ID          string
	Label       string
	Description string
}

// SearchEntities runs a free-text entity search and returns up to limit hits.
// When limit is 0 the configured SearchLimit (default 10) applies.
func (c *Client) SearchEntities(ctx context.Context, text string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = c.Cfg.SearchLimit
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {text},
		"language": {"en"},
		"type":     {"item"},
		"limit":    {fmt.Sprintf("%d", limit)},
		"format":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.Cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("entity search request: %w: %v", httputil.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := httputil.ClassifyStatus("entity search", resp.StatusCode); err != nil {
		return nil, err
	}

	var wr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	var hits []SearchHit
	for _, s := range wr.Search {
		if !ValidID(s.ID) {
			continue
		}
		hits = append(hits, SearchHit{ID: s.ID, Label: s.Label, Description: s.Description})
	}
	return hits, nil
}

// Entity is the subset of an entity record the resolver consumes.
type Entity struct {
	ID                 string
	TaxonName          string            // identifying-name property (P225)
	RankID             string            // taxon rank entity (P105)
	RankLabel          string            // human-readable rank, when known
	ParentID           string            // parent taxon (P171)
	ConservationStatus string            // IUCN code, when known
	Labels             map[string]string // language code → label
	Sitelinks          map[string]string // language code → article URL
}

// GetEntity fetches one entity's claims, labels, and sitelinks.
func (c *Client) GetEntity(ctx context.Context, id string) (*Entity, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("malformed entity identifier %q", id)
	}

	params := url.Values{
		"action": {"wbgetentities"},
		"ids":    {id},
		"props":  {"claims|labels|sitelinks"},
		"format": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.Cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("entity fetch request: %w: %v", httputil.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := httputil.ClassifyStatus("entity fetch", resp.StatusCode); err != nil {
		return nil, err
	}

	var er entitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing entity response: %w", err)
	}

	raw, ok := er.Entities[id]
	if !ok || raw.Missing != nil {
		return nil, fmt.Errorf("entity %s not found", id)
	}

	e := &Entity{
		ID:        id,
		Labels:    make(map[string]string),
		Sitelinks: make(map[string]string),
	}

	e.TaxonName = firstStringClaim(raw.Claims["P225"])
	e.RankID = firstEntityClaim(raw.Claims["P105"])
	e.RankLabel = rankLabels[e.RankID]
	e.ParentID = firstEntityClaim(raw.Claims["P171"])
	e.ConservationStatus = conservationCodes[firstEntityClaim(raw.Claims["P141"])]

	for lang, l := range raw.Labels {
		e.Labels[lang] = l.Value
	}
	for site, link := range raw.Sitelinks {
		lang, ok := strings.CutSuffix(site, "wiki")
		if !ok || lang == "" || nonLanguageSites[lang] {
			continue
		}
		title := strings.ReplaceAll(link.Title, " ", "_")
		e.Sitelinks[lang] = fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", lang, url.PathEscape(title))
	}

	return e, nil
}

// nonLanguageSites are sitelink keys ending in "wiki" that are not
// language editions of Wikipedia.
var nonLanguageSites = map[string]bool{
	"commons": true, "species": true, "meta": true, "sources": true, "data": true,
}

// rankLabels maps taxon-rank entities to display labels.
var rankLabels = map[string]string{
	"Q7432":    "species",
	"Q68947":   "subspecies",
	"Q767728":  "variety",
	"Q34740":   "genus",
	"Q3978005": "breed",
}

// conservationCodes maps IUCN status entities to their codes.
var conservationCodes = map[string]string{
	"Q211005":  "LC",
	"Q719675":  "NT",
	"Q278113":  "VU",
	"Q11394":   "EN",
	"Q219127":  "CR",
	"Q239509":  "EW",
	"Q237350":  "EX",
	"Q3245245": "DD",
}

// --- wire formats ---

type sparqlResponse struct {
	Results struct {
		Bindings []struct {
			Item struct {
				Value string `json:"value"`
			} `json:"item"`
		} `json:"bindings"`
	} `json:"results"`
}

type searchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
}

type entitiesResponse struct {
	Entities map[string]rawEntity `json:"entities"`
}

type rawEntity struct {
	Missing   *string                `json:"missing"`
	Claims    map[string][]rawClaim  `json:"claims"`
	Labels    map[string]rawLabel    `json:"labels"`
	Sitelinks map[string]rawSitelink `json:"sitelinks"`
}

type rawClaim struct {
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type rawLabel struct {
	Value string `json:"value"`
}

type rawSitelink struct {
	Title string `json:"title"`
}

// firstStringClaim extracts a plain string value from the first claim.
func firstStringClaim(claims []rawClaim) string {
	for _, c := range claims {
		var s string
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// firstEntityClaim extracts an entity identifier value from the first claim.
func firstEntityClaim(claims []rawClaim) string {
	for _, c := range claims {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err == nil && ValidID(v.ID) {
			return v.ID
		}
	}
	return ""
}
