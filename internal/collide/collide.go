// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collide resolves identifier collisions: two catalog records whose
// lookups landed on the same external identifier. The resolver decides a
// replacement identifier (possibly none) for each side; the two outputs are
// never equal when both are present.
package collide

import (
	"context"
	"errors"
	"strings"

	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/internal/wikidata"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// Graph is the subset of the knowledge-graph client the resolver consumes.
type Graph interface {
	FindByTaxonName(ctx context.Context, name string) ([]string, error)
	GetEntity(ctx context.Context, id string) (*wikidata.Entity, error)
}

// Resolution is the outcome of one collision case. An empty identifier
// means the side resolves to none rather than reusing the disputed one.
type Resolution struct {
	ExistingID string
	IncomingID string
	Note       string
}

// NoOp reports whether the resolution changed nothing: the existing side
// retains the disputed identifier and the incoming side got none. A no-op
// is a legitimate, idempotent-safe outcome; it is logged, never retried
// within the run.
func (r Resolution) NoOp(disputed string) bool {
	return r.ExistingID == disputed && r.IncomingID == ""
}

// Resolver decides collision cases against the knowledge graph.
type Resolver struct {
	Graph Graph
}

// Resolve decides replacements for both sides of a collision. The decision
// procedure, in order:
//
//  1. A species-complex ("sensu lato") side maps to the species-level
//     disputed identifier; the other side is forced elsewhere or to none.
//  2. The side whose canonical name equals the disputed entity's taxon
//     name keeps it; the other side is rerouted.
//  3. Otherwise the existing side keeps the disputed identifier for
//     stability and the incoming side is rerouted.
//
// Rerouting searches a side's own names for an exact taxon-name match
// distinct from the disputed identifier, preferring subspecies-ranked
// entities for three-term names; with no alternative the side resolves to
// none. Both outputs being present and equal is ruled out before return.
func (r *Resolver) Resolve(ctx context.Context, existing, incoming *types.TaxonRecord, disputed string) (Resolution, error) {
	var disputedName string
	if ent, err := r.Graph.GetEntity(ctx, disputed); err == nil {
		disputedName = ent.TaxonName
	} else if errors.Is(err, httputil.ErrAuth) || errors.Is(err, httputil.ErrTransient) {
		return Resolution{}, err
	}

	exOwns := nameEquals(existing.ScientificName, disputedName)
	inOwns := nameEquals(incoming.ScientificName, disputedName)
	exComplex := isSensuLato(existing.ScientificName)
	inComplex := isSensuLato(incoming.ScientificName)

	var res Resolution
	var err error

	switch {
	case exComplex && !inComplex:
		res.ExistingID = disputed
		res.IncomingID, err = r.alternativeFor(ctx, incoming, disputed)
		res.Note = "species complex keeps species-level identifier"
	case inComplex && !exComplex:
		res.IncomingID = disputed
		res.ExistingID, err = r.alternativeFor(ctx, existing, disputed)
		res.Note = "species complex keeps species-level identifier"
	case exOwns && !inOwns:
		res.ExistingID = disputed
		res.IncomingID, err = r.alternativeFor(ctx, incoming, disputed)
		res.Note = "existing side owns the disputed taxon name"
	case inOwns && !exOwns:
		res.IncomingID = disputed
		res.ExistingID, err = r.alternativeFor(ctx, existing, disputed)
		res.Note = "incoming side owns the disputed taxon name"
	default:
		res.ExistingID = disputed
		res.IncomingID, err = r.alternativeFor(ctx, incoming, disputed)
		res.Note = "ambiguous claim, existing side kept for stability"
	}
	if err != nil {
		return Resolution{}, err
	}

	// Both outputs present and equal would re-create the collision.
	if res.IncomingID != "" && res.IncomingID == res.ExistingID {
		res.IncomingID = ""
	}
	return res, nil
}

// alternativeFor finds a distinct identifier for one side: the first exact
// taxon-name match over the side's names that is not the excluded
// identifier. Three-term names prefer subspecies-ranked entities.
func (r *Resolver) alternativeFor(ctx context.Context, rec *types.TaxonRecord, exclude string) (string, error) {
	names := append([]string{rec.ScientificName}, rec.Alternates...)
	for _, name := range names {
		if name == "" {
			continue
		}
		ids, err := r.Graph.FindByTaxonName(ctx, name)
		if err != nil {
			if errors.Is(err, httputil.ErrAuth) || errors.Is(err, httputil.ErrTransient) {
				return "", err
			}
			continue
		}

		trinomial := len(strings.Fields(name)) >= 3
		fallback := ""
		for _, id := range ids {
			if id == exclude {
				continue
			}
			if !trinomial {
				return id, nil
			}
			if ent, err := r.Graph.GetEntity(ctx, id); err == nil && ent.RankLabel == "subspecies" {
				return id, nil
			}
			if fallback == "" {
				fallback = id
			}
		}
		if fallback != "" {
			return fallback, nil
		}
	}
	return "", nil
}

// nameEquals compares scientific names case-insensitively, ignoring a
// species-complex marker.
func nameEquals(a, b string) bool {
	ka, kb := nameKey(a), nameKey(b)
	return ka != "" && ka == kb
}

func nameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(stripSensuLato(name))), " ")
}

// isSensuLato reports whether a name carries a species-complex marker.
func isSensuLato(name string) bool {
	return stripSensuLato(name) != name
}

func stripSensuLato(name string) string {
	lower := strings.ToLower(name)
	for _, marker := range []string{" sensu lato", " s. lat.", " s.l.", " s. l."} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			return strings.TrimSpace(name[:idx])
		}
	}
	return name
}
