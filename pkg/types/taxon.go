// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model and configuration for the
// taxon-resolver pipeline.
package types

import "strings"

// MatchStatus tracks where a record stands in the resolution lifecycle.
type MatchStatus string

const (
	StatusUnresolved  MatchStatus = "unresolved"
	StatusAutoMatched MatchStatus = "auto_matched"
	StatusCollision   MatchStatus = "collision"
	StatusNone        MatchStatus = "none"
)

// MatchMethod records which lookup strategy produced an identifier.
type MatchMethod string

const (
	MethodExact     MatchMethod = "exact"
	MethodFuzzy     MatchMethod = "fuzzy"
	MethodModel     MatchMethod = "model"
	MethodCollision MatchMethod = "collision"
)

// TaxonRecord is one catalog entry. It persists in the catalog store and is
// mutated only by the enrichment merge and the collision resolver, under
// orchestrator coordination.
type TaxonRecord struct {
	LocalID        string            `yaml:"local_id"`
	ScientificName string            `yaml:"scientific_name"`
	Alternates     []string          `yaml:"alternates,omitempty"`
	Vernacular     map[string]string `yaml:"vernacular,omitempty"` // language code → name

	ExternalID string              `yaml:"external_id,omitempty"` // empty means unassigned
	Status     MatchStatus         `yaml:"status"`
	Method     MatchMethod         `yaml:"method,omitempty"`
	Score      int                 `yaml:"score,omitempty"`
	Rejected   []RejectedCandidate `yaml:"rejected,omitempty"` // audit trail of rejected candidates

	// Enrichment fields, populated once an identifier is confirmed.
	RankLabel          string            `yaml:"rank_label,omitempty"`
	ParentID           string            `yaml:"parent_id,omitempty"`
	ConservationStatus string            `yaml:"conservation_status,omitempty"`
	Links              map[string]string `yaml:"links,omitempty"` // language code → article URL

	// Filter attributes supplied by the import collaborator.
	Domesticated bool `yaml:"domesticated,omitempty"`
	Observations int  `yaml:"observations,omitempty"`
}

// ClearEnrichment drops all enrichment fields. Called when a collision
// resolution replaces the identifier the enrichment was fetched for.
func (r *TaxonRecord) ClearEnrichment() {
	r.RankLabel = ""
	r.ParentID = ""
	r.ConservationStatus = ""
	r.Links = nil
}

// CandidateName is the ephemeral lookup key set for one resolution attempt:
// the normalized canonical name, its alternates in source order, and any
// vernacular names. The same lists later serve as validation keys for fuzzy
// search hits.
type CandidateName struct {
	Canonical  string
	Alternates []string
	Vernacular []string
}

// ScientificNames returns the canonical name followed by the alternates,
// with duplicates and empty entries removed, order preserved.
func (c CandidateName) ScientificNames() []string {
	return dedup(append([]string{c.Canonical}, c.Alternates...))
}

// AllNames returns the scientific names followed by the vernacular names.
func (c CandidateName) AllNames() []string {
	return dedup(append(c.ScientificNames(), c.Vernacular...))
}

// IsEmpty reports whether the candidate carries no usable name.
func (c CandidateName) IsEmpty() bool {
	return len(c.AllNames()) == 0
}

func dedup(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(n))
	}
	return out
}

// RejectedCandidate is one audit-trail entry for a lookup hit that failed
// validation.
type RejectedCandidate struct {
	ExternalID string `json:"external_id" yaml:"external_id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Reason     string `json:"reason" yaml:"reason"`
}

// MatchResult is the outcome of one strategy cascade run. Owned transiently
// by a single resolution attempt.
type MatchResult struct {
	ExternalID string // empty means no match
	Method     MatchMethod
	Score      int
	Rejected   []RejectedCandidate
}

// Matched reports whether the cascade produced an identifier.
func (m MatchResult) Matched() bool { return m.ExternalID != "" }

// CollisionCase pairs two records that claim the same disputed identifier.
// Created when an assignment would violate the uniqueness invariant and
// discarded once resolved.
type CollisionCase struct {
	DisputedID string
	Existing   *TaxonRecord // the record currently holding the identifier
	Incoming   *TaxonRecord // the record whose lookup just resolved to it
}

// Enrichment holds secondary descriptive metadata fetched for a confirmed
// identifier. Absent fields stay zero; partial results are normal.
type Enrichment struct {
	RankLabel          string
	ParentID           string
	ConservationStatus string
	Links              map[string]string // language code → article URL
}
