// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"context"

	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// Exact queries the graph for an entity whose identifying-name property
// equals a candidate name exactly. Names are tried in source order,
// canonical first; the first hit wins with zero ambiguity.
type Exact struct {
	Graph Graph
	Score int
}

// Name returns the strategy identifier.
func (e *Exact) Name() string { return "exact" }

// Lookup tries each scientific name in order and accepts the first entity
// with a byte-identical taxon name.
func (e *Exact) Lookup(ctx context.Context, cand types.CandidateName) (types.MatchResult, error) {
	for _, name := range cand.ScientificNames() {
		ids, err := e.Graph.FindByTaxonName(ctx, name)
		if err != nil {
			return types.MatchResult{}, err
		}
		if len(ids) > 0 {
			return types.MatchResult{
				ExternalID: ids[0],
				Method:     types.MethodExact,
				Score:      e.Score,
			}, nil
		}
	}
	return types.MatchResult{}, nil
}
