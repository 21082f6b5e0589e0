// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate drives a resolution run: it feeds unresolved catalog
// records through the lookup cascade with a bounded worker pool, guards the
// assigned-identifier set, routes collisions, and commits every record
// independently so an interrupted run loses at most the records in flight.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/taxon-resolver/internal/collide"
	"github.com/pdiddy/taxon-resolver/internal/enrich"
	"github.com/pdiddy/taxon-resolver/internal/httputil"
	"github.com/pdiddy/taxon-resolver/internal/normalize"
	"github.com/pdiddy/taxon-resolver/pkg/types"
)

// DefaultConcurrency bounds the worker pool when no explicit value is set.
const DefaultConcurrency = 20

// MaxConcurrency caps the pool regardless of configuration, out of courtesy
// to the remote services.
const MaxConcurrency = 30

// Store is the catalog surface the runner needs.
type Store interface {
	Unresolved(ctx context.Context, filter types.RecordFilter) ([]*types.TaxonRecord, error)
	Get(ctx context.Context, localID string) (*types.TaxonRecord, error)
	AssignedIDs(ctx context.Context) (map[string]string, error)
	Commit(ctx context.Context, rec *types.TaxonRecord) error
	LinkOwner(ctx context.Context, url string) (string, bool)
}

// Matcher runs the lookup cascade for one candidate name set.
type Matcher interface {
	Run(ctx context.Context, cand types.CandidateName) (types.MatchResult, error)
}

// Collider decides two-sided collision cases.
type Collider interface {
	Resolve(ctx context.Context, existing, incoming *types.TaxonRecord, disputed string) (collide.Resolution, error)
}

// Enricher fetches descriptive metadata for a confirmed identifier.
type Enricher interface {
	Fetch(ctx context.Context, id string) (types.Enrichment, error)
}

// Tally holds end-of-run counts.
type Tally struct {
	Matched    int
	Collisions int
	NoMatch    int
	Unresolved int
	Failed     int
}

// Total returns the number of records processed.
func (t Tally) Total() int {
	return t.Matched + t.Collisions + t.NoMatch + t.Unresolved + t.Failed
}

// Runner wires the pipeline stages together for one run.
type Runner struct {
	Store    Store
	Matcher  Matcher
	Collider Collider
	Enricher Enricher
	Cfg      types.ResolveConfig
	Log      io.Writer

	// commitMu pairs each claim, release, or reassignment with the commit
	// that makes it durable, so a reader holding the mutex always sees the
	// set and storage in agreement. It is never held across a lookup,
	// collision-resolver, or enrichment fetch.
	commitMu sync.Mutex

	mu       sync.Mutex
	tally    Tally
	fatalErr error
}

// Run resolves all unresolved records passing the filter. It returns the
// tally and the first batch-fatal error, if any. Transient failures leave
// their records unresolved for the next run; rerunning a finished batch
// writes nothing.
func (r *Runner) Run(ctx context.Context, filter types.RecordFilter) (Tally, error) {
	runID := uuid.New().String()
	fmt.Fprintf(r.Log, "run %s\n", runID)

	records, err := r.Store.Unresolved(ctx, filter)
	if err != nil {
		return Tally{}, fmt.Errorf("loading work queue: %w", err)
	}
	assignedSeed, err := r.Store.AssignedIDs(ctx)
	if err != nil {
		return Tally{}, fmt.Errorf("seeding assigned identifiers: %w", err)
	}
	assigned := NewAssignedSet(assignedSeed)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *types.TaxonRecord)
	var wg sync.WaitGroup
	for i := 0; i < r.concurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if ctx.Err() != nil {
					continue
				}
				r.processRecord(ctx, rec, assigned, cancel)
			}
		}()
	}

	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	r.mu.Lock()
	tally, fatal := r.tally, r.fatalErr
	r.mu.Unlock()

	fmt.Fprintf(r.Log, "\nprocessed: %d, matched: %d, collisions: %d, no match: %d, unresolved: %d, failed: %d\n",
		tally.Total(), tally.Matched, tally.Collisions, tally.NoMatch, tally.Unresolved, tally.Failed)
	return tally, fatal
}

func (r *Runner) concurrency() int {
	n := r.Cfg.Concurrency
	if n < 1 {
		n = DefaultConcurrency
	}
	if n > MaxConcurrency {
		n = MaxConcurrency
	}
	return n
}

func (r *Runner) processRecord(ctx context.Context, rec *types.TaxonRecord, assigned *AssignedSet, cancel context.CancelFunc) {
	norm := normalize.Name(rec.ScientificName)
	cand := types.CandidateName{
		Canonical:  norm.Canonical,
		Alternates: append(norm.Alternates, rec.Alternates...),
	}
	for _, name := range rec.Vernacular {
		cand.Vernacular = append(cand.Vernacular, name)
	}

	if cand.IsEmpty() {
		rec.Status = types.StatusNone
		r.commit(ctx, rec)
		fmt.Fprintf(r.Log, "no match    %s (empty name)\n", rec.LocalID)
		r.count(func(t *Tally) { t.NoMatch++ })
		return
	}

	res, err := r.Matcher.Run(ctx, cand)
	if err != nil {
		if errors.Is(err, httputil.ErrAuth) {
			r.fatal(err, cancel)
			return
		}
		fmt.Fprintf(r.Log, "unresolved  %s (%s): %v\n", rec.LocalID, cand.Canonical, err)
		r.count(func(t *Tally) { t.Unresolved++ })
		return
	}

	if !res.Matched() {
		rec.Status = types.StatusNone
		rec.Rejected = res.Rejected
		if !r.commit(ctx, rec) {
			return
		}
		fmt.Fprintf(r.Log, "no match    %s (%s)\n", rec.LocalID, cand.Canonical)
		r.count(func(t *Tally) { t.NoMatch++ })
		return
	}

	ok, holder := r.claimAndCommit(ctx, rec, res, assigned)
	switch {
	case ok:
		r.enrichRecord(ctx, rec, assigned, cancel)
		fmt.Fprintf(r.Log, "matched     %s → %s (%s, score %d)\n",
			rec.LocalID, rec.ExternalID, rec.Method, rec.Score)
		r.count(func(t *Tally) { t.Matched++ })
	case holder != "":
		enrichNext := r.resolveCollision(ctx, rec, res, holder, assigned, cancel)
		for _, winner := range enrichNext {
			r.enrichRecord(ctx, winner, assigned, cancel)
		}
	}
}

// claimAndCommit atomically claims the matched identifier and writes the
// resolution. It reports whether the record now holds the identifier; when
// it does not, holder names the conflicting local ID, or is "" if the claim
// succeeded but the commit failed and was rolled back.
func (r *Runner) claimAndCommit(ctx context.Context, rec *types.TaxonRecord, res types.MatchResult, assigned *AssignedSet) (ok bool, holder string) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	ok, holder = assigned.Claim(res.ExternalID, rec.LocalID)
	if !ok {
		return false, holder
	}
	applyMatch(rec, res.ExternalID, res.Method, res.Score, res.Rejected)
	if !r.commit(ctx, rec) {
		assigned.Release(res.ExternalID, rec.LocalID)
		return false, ""
	}
	return true, ""
}

// resolveCollision decides a two-sided collision case. The resolver's
// network round trips run unlocked; the decision is re-validated and applied
// under commitMu. It commits both sides and returns the records that ended
// up holding an identifier and still need enrichment.
func (r *Runner) resolveCollision(ctx context.Context, rec *types.TaxonRecord, res types.MatchResult, holder string, assigned *AssignedSet, cancel context.CancelFunc) []*types.TaxonRecord {
	r.commitMu.Lock()
	existing, err := r.Store.Get(ctx, holder)
	r.commitMu.Unlock()
	if err != nil || existing == nil {
		fmt.Fprintf(r.Log, "unresolved  %s: cannot load collision holder %s: %v\n", rec.LocalID, holder, err)
		r.count(func(t *Tally) { t.Unresolved++ })
		return nil
	}

	resol, err := r.Collider.Resolve(ctx, existing, rec, res.ExternalID)
	if err != nil {
		if errors.Is(err, httputil.ErrAuth) {
			r.fatal(err, cancel)
			return nil
		}
		fmt.Fprintf(r.Log, "unresolved  %s: collision over %s: %v\n", rec.LocalID, res.ExternalID, err)
		r.count(func(t *Tally) { t.Unresolved++ })
		return nil
	}

	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	// The set may have moved while the resolver ran. If the identifier was
	// freed, take it as a plain match; if it changed hands, the decision was
	// made against a stale holder, so leave the record for the next run.
	if ok, _ := assigned.Claim(res.ExternalID, rec.LocalID); ok {
		applyMatch(rec, res.ExternalID, res.Method, res.Score, res.Rejected)
		if !r.commit(ctx, rec) {
			assigned.Release(res.ExternalID, rec.LocalID)
			return nil
		}
		fmt.Fprintf(r.Log, "matched     %s → %s (%s, score %d)\n",
			rec.LocalID, rec.ExternalID, rec.Method, rec.Score)
		r.count(func(t *Tally) { t.Matched++ })
		return []*types.TaxonRecord{rec}
	}
	if h, held := assigned.Holder(res.ExternalID); !held || h != holder {
		fmt.Fprintf(r.Log, "unresolved  %s: holder of %s changed during collision review\n", rec.LocalID, res.ExternalID)
		r.count(func(t *Tally) { t.Unresolved++ })
		return nil
	}

	var enrichNext []*types.TaxonRecord

	if resol.ExistingID != res.ExternalID {
		assigned.Reassign(res.ExternalID, resol.ExistingID, existing.LocalID)
		applyMatch(existing, resol.ExistingID, types.MethodCollision, existing.Score, existing.Rejected)
		if resol.ExistingID == "" {
			existing.Status = types.StatusCollision
		}
		existing.ClearEnrichment()
		switch {
		case !r.commit(ctx, existing):
			// Storage still holds the old assignment, so move the in-memory
			// claim back to match it.
			assigned.Reassign(resol.ExistingID, res.ExternalID, existing.LocalID)
		case existing.ExternalID != "":
			enrichNext = append(enrichNext, existing)
		}
	}

	switch {
	case resol.IncomingID == "":
		// The side that lost with no alternative stays flagged as a
		// collision rather than a clean no-match.
		rec.Status = types.StatusCollision
		rec.Method = types.MethodCollision
		rec.Rejected = res.Rejected
		r.commit(ctx, rec)
	default:
		if ok, other := assigned.Claim(resol.IncomingID, rec.LocalID); !ok {
			// The rerouted identifier is itself taken. Flag the record
			// rather than opening a second collision case.
			fmt.Fprintf(r.Log, "warning: rerouted identifier %s for %s already held by %s\n",
				resol.IncomingID, rec.LocalID, other)
			rec.Status = types.StatusCollision
			rec.Method = types.MethodCollision
			rec.Rejected = res.Rejected
			r.commit(ctx, rec)
			break
		}
		applyMatch(rec, resol.IncomingID, types.MethodCollision, res.Score, res.Rejected)
		if r.commit(ctx, rec) {
			enrichNext = append(enrichNext, rec)
		}
	}

	fmt.Fprintf(r.Log, "collision   %s vs %s over %s: %s\n",
		rec.LocalID, existing.LocalID, res.ExternalID, resol.Note)
	r.count(func(t *Tally) { t.Collisions++ })
	return enrichNext
}

// enrichRecord fetches and merges metadata for a record that holds an
// identifier. Enrichment failures never undo the match. The commit only
// lands if the record still holds the identifier it was enriched for, so a
// collision reroute during the fetch cannot be overwritten by this stale
// snapshot.
func (r *Runner) enrichRecord(ctx context.Context, rec *types.TaxonRecord, assigned *AssignedSet, cancel context.CancelFunc) {
	e, err := r.Enricher.Fetch(ctx, rec.ExternalID)
	if err != nil {
		if errors.Is(err, httputil.ErrAuth) {
			r.fatal(err, cancel)
			return
		}
		fmt.Fprintf(r.Log, "warning: enrichment for %s (%s) failed: %v\n", rec.LocalID, rec.ExternalID, err)
		return
	}

	owner := func(link string) (string, bool) { return r.Store.LinkOwner(ctx, link) }
	if !enrich.Merge(rec, e, r.Cfg.Overwrite, owner, r.Log) {
		return
	}

	r.commitMu.Lock()
	defer r.commitMu.Unlock()
	if h, held := assigned.Holder(rec.ExternalID); !held || h != rec.LocalID {
		fmt.Fprintf(r.Log, "warning: dropping enrichment for %s: %s was reassigned during the fetch\n",
			rec.LocalID, rec.ExternalID)
		return
	}
	r.commit(ctx, rec)
}

func applyMatch(rec *types.TaxonRecord, externalID string, method types.MatchMethod, score int, rejected []types.RejectedCandidate) {
	rec.ExternalID = externalID
	rec.Method = method
	rec.Score = score
	rec.Rejected = rejected
	if externalID == "" {
		rec.Status = types.StatusNone
	} else {
		rec.Status = types.StatusAutoMatched
	}
}

func (r *Runner) commit(ctx context.Context, rec *types.TaxonRecord) bool {
	if err := r.Store.Commit(ctx, rec); err != nil {
		fmt.Fprintf(r.Log, "error: committing %s: %v\n", rec.LocalID, err)
		r.count(func(t *Tally) { t.Failed++ })
		return false
	}
	return true
}

func (r *Runner) count(f func(*Tally)) {
	r.mu.Lock()
	f(&r.tally)
	r.mu.Unlock()
}

func (r *Runner) fatal(err error, cancel context.CancelFunc) {
	r.mu.Lock()
	if r.fatalErr == nil {
		r.fatalErr = err
	}
	r.mu.Unlock()
	fmt.Fprintf(r.Log, "fatal: %v\n", err)
	cancel()
}
