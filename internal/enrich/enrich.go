// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fetches secondary descriptive metadata for a confirmed
// identifier and merges it into the catalog record without destroying
// locally curated values.
package enrich

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/taxon-resolver/internal/wikidata"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// Graph is the subset of the knowledge-graph client the fetcher consumes.
type Graph interface {
	GetEntity(ctx context.Context, id string) (*wikidata.Entity, error)
}

// LinkOwner reports which record, if any, already owns the exact link
// string. Backed by the catalog store.
type LinkOwner func(link string) (localID string, owned bool)

// Fetcher retrieves enrichment metadata from the knowledge graph.
type Fetcher struct {
	Graph Graph
}

// Fetch returns whatever metadata the entity carries. Partial results are
// normal; absent fields stay zero.
func (f *Fetcher) Fetch(ctx context.Context, id string) (types.Enrichment, error) {
	ent, err := f.Graph.GetEntity(ctx, id)
	if err != nil {
		return types.Enrichment{}, err
	}
	return types.Enrichment{
		RankLabel:          ent.RankLabel,
		ParentID:           ent.ParentID,
		ConservationStatus: ent.ConservationStatus,
		Links:              ent.Sitelinks,
	}, nil
}

// Merge applies fetched metadata to a record and reports whether anything
// changed. A populated local field is never overwritten unless overwrite
// is set, and an empty fetched value is never written even then. Before a
// link is written, owner is consulted: a link already held by another
// record is logged and skipped, never escalated.
func Merge(rec *types.TaxonRecord, e types.Enrichment, overwrite bool, owner LinkOwner, log io.Writer) bool {
	changed := false

	changed = mergeField(&rec.RankLabel, e.RankLabel, overwrite) || changed
	changed = mergeField(&rec.ParentID, e.ParentID, overwrite) || changed
	changed = mergeField(&rec.ConservationStatus, e.ConservationStatus, overwrite) || changed

	for lang, link := range e.Links {
		if link == "" {
			continue
		}
		if existing := rec.Links[lang]; existing != "" && (!overwrite || existing == link) {
			continue
		}
		if ownerID, owned := owner(link); owned && ownerID != rec.LocalID {
			fmt.Fprintf(log, "warning: link %s already owned by record %s, skipped for %s\n",
				link, ownerID, rec.LocalID)
			continue
		}
		if rec.Links == nil {
			rec.Links = make(map[string]string)
		}
		rec.Links[lang] = link
		changed = true
	}

	return changed
}

func mergeField(dst *string, fetched string, overwrite bool) bool {
	if fetched == "" || fetched == *dst {
		return false
	}
	if *dst != "" && !overwrite {
		return false
	}
	*dst = fetched
	return true
}
