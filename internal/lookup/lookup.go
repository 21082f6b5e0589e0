// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup resolves candidate names to external identifiers through
// an ordered, short-circuiting strategy cascade: structured exact match,
// fuzzy search with validation, then model-assisted lookup. Each backend
// implements the Strategy interface; adding one means implementing the
// interface, never branching on type.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/internal/llm"
	"github.com/pdiddy/taxon-resolver/internal/wikidata"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// Strategy is one lookup backend. An empty ExternalID in the result means
// no match; errors carry the transient/auth classification from the
// shared taxonomy.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, cand types.CandidateName) (types.MatchResult, error)
}

// Graph is the subset of the knowledge-graph client the strategies consume.
type Graph interface {
	FindByTaxonName(ctx context.Context, name string) ([]string, error)
	SearchEntities(ctx context.Context, text string, limit int) ([]wikidata.SearchHit, error)
	GetEntity(ctx context.Context, id string) (*wikidata.Entity, error)
}

// Cascade runs strategies strictly in priority order, stopping at the
// first non-empty identifier.
type Cascade struct {
	Strategies []Strategy
	Log        io.Writer
}

// NewCascade wires the standard three-strategy cascade.
func NewCascade(g Graph, ai llm.Client, scores types.ScoreConfig, searchLimit, maxAttempts int, log io.Writer) *Cascade {
	return &Cascade{
		Strategies: []Strategy{
			&Exact{Graph: g, Score: scores.Exact},
			&Fuzzy{Graph: g, Limit: searchLimit, ScoreScientific: scores.FuzzyScientific, ScoreVernacular: scores.FuzzyVernacular},
			&Model{AI: ai, Score: scores.Model, MaxAttempts: maxAttempts, Log: log},
		},
		Log: log,
	}
}

// Run tries each strategy in order and returns the first match. Strategy
// failures convert to no-result so the cascade continues; authentication
// failures abort immediately. When no strategy matches and at least one
// failed transiently, the returned error wraps httputil.ErrTransient so
// the caller leaves the record for a future run instead of marking it
// unmatched.
func (c *Cascade) Run(ctx context.Context, cand types.CandidateName) (types.MatchResult, error) {
	var (
		rejected     []types.RejectedCandidate
		sawTransient bool
	)

	for _, s := range c.Strategies {
		res, err := s.Lookup(ctx, cand)
		rejected = append(rejected, res.Rejected...)
		if err != nil {
			if errors.Is(err, httputil.ErrAuth) {
				return types.MatchResult{}, err
			}
			if errors.Is(err, httputil.ErrTransient) {
				sawTransient = true
			}
			fmt.Fprintf(c.Log, "warning: strategy %s failed for %q: %v\n", s.Name(), cand.Canonical, err)
			continue
		}
		if res.Matched() {
			res.Rejected = rejected
			return res, nil
		}
	}

	if sawTransient {
		return types.MatchResult{Rejected: rejected},
			fmt.Errorf("lookup for %q incomplete: %w", cand.Canonical, httputil.ErrTransient)
	}
	return types.MatchResult{Rejected: rejected}, nil
}
