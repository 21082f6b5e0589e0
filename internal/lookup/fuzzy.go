// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"context"
	"errors"
	"strings"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// Fuzzy runs a free-text entity search per candidate name and validates
// each hit independently: the hit's own identifying-name property must
// match some name in the full candidate list, case-insensitively. Hits
// validated through the scientific-name list score higher than hits
// validated through vernacular names. Rejected hits are kept as an audit
// trail.
type Fuzzy struct {
	Graph           Graph
	Limit           int
	ScoreScientific int
	ScoreVernacular int
}

// Name returns the strategy identifier.
func (f *Fuzzy) Name() string { return "fuzzy" }

// Lookup searches for every candidate name and accepts the first hit that
// survives validation.
func (f *Fuzzy) Lookup(ctx context.Context, cand types.CandidateName) (types.MatchResult, error) {
	scientific := lowerSet(cand.ScientificNames())
	vernacular := lowerSet(cand.Vernacular)

	var rejected []types.RejectedCandidate
	seen := make(map[string]bool)

	for _, name := range cand.AllNames() {
		hits, err := f.Graph.SearchEntities(ctx, name, f.Limit)
		if err != nil {
			return types.MatchResult{Rejected: rejected}, err
		}

		for _, hit := range hits {
			if seen[hit.ID] {
				continue
			}
			seen[hit.ID] = true

			ent, err := f.Graph.GetEntity(ctx, hit.ID)
			if err != nil {
				if errors.Is(err, httputil.ErrAuth) || errors.Is(err, httputil.ErrTransient) {
					return types.MatchResult{Rejected: rejected}, err
				}
				rejected = append(rejected, types.RejectedCandidate{
					ExternalID: hit.ID, Name: hit.Label, Reason: "entity fetch failed",
				})
				continue
			}

			key := strings.ToLower(ent.TaxonName)
			switch {
			case key == "":
				rejected = append(rejected, types.RejectedCandidate{
					ExternalID: hit.ID, Name: hit.Label, Reason: "no taxon name property",
				})
			case scientific[key]:
				return types.MatchResult{
					ExternalID: hit.ID,
					Method:     types.MethodFuzzy,
					Score:      f.ScoreScientific,
					Rejected:   rejected,
				}, nil
			case vernacular[key] || labelMatches(ent.Labels, vernacular):
				return types.MatchResult{
					ExternalID: hit.ID,
					Method:     types.MethodFuzzy,
					Score:      f.ScoreVernacular,
					Rejected:   rejected,
				}, nil
			default:
				rejected = append(rejected, types.RejectedCandidate{
					ExternalID: hit.ID, Name: ent.TaxonName, Reason: "taxon name matches no candidate",
				})
			}
		}
	}

	return types.MatchResult{Rejected: rejected}, nil
}

// labelMatches reports whether any entity label equals a vernacular
// candidate, case-insensitively.
func labelMatches(labels map[string]string, vernacular map[string]bool) bool {
	for _, l := range labels {
		if vernacular[strings.ToLower(l)] {
			return true
		}
	}
	return false
}

func lowerSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n != "" {
			set[n] = true
		}
	}
	return set
}
