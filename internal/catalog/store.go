// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists TaxonRecords in a local SQLite database: the
// import surface, the unresolved work queue, and the per-record write-back
// target of a resolution run.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/taxon-resolver/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "catalog.db"
)

// Store manages the catalog SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the catalog database at dataDir/index/catalog.db
// and creates the schema if it does not exist.
func NewStore(cfg types.CatalogConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS taxa (
			local_id TEXT PRIMARY KEY,
			scientific_name TEXT NOT NULL,
			alternates TEXT,
			vernacular TEXT,
			external_id TEXT,
			status TEXT NOT NULL DEFAULT 'unresolved',
			method TEXT,
			score INTEGER,
			rejected TEXT,
			rank_label TEXT,
			parent_id TEXT,
			conservation_status TEXT,
			domesticated INTEGER NOT NULL DEFAULT 0,
			observations INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_taxa_status ON taxa(status)`,
		`CREATE INDEX IF NOT EXISTS idx_taxa_external_id ON taxa(external_id)`,
		`CREATE TABLE IF NOT EXISTS links (
			url TEXT PRIMARY KEY,
			local_id TEXT NOT NULL REFERENCES taxa(local_id),
			lang TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_local_id ON links(local_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// ImportSummary holds counts from a catalog import run.
type ImportSummary struct {
	Imported int
	Failed   int
}

// Total returns the number of records processed.
func (s ImportSummary) Total() int { return s.Imported + s.Failed }

// ImportYAML reads a YAML list of TaxonRecords and upserts each one.
// Records without a status start unresolved.
func (s *Store) ImportYAML(ctx context.Context, path string, w io.Writer) (ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("reading catalog file: %w", err)
	}

	var records []types.TaxonRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return ImportSummary{}, fmt.Errorf("parsing catalog file: %w", err)
	}

	var summary ImportSummary
	for i := range records {
		rec := &records[i]
		if rec.Status == "" {
			rec.Status = types.StatusUnresolved
		}
		if err := s.Upsert(ctx, rec); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rec.LocalID, err)
			summary.Failed++
			continue
		}
		summary.Imported++
	}

	fmt.Fprintf(w, "\nimported: %d, failed: %d\n", summary.Imported, summary.Failed)
	return summary, nil
}

// Upsert inserts one record or refreshes the identity and filter columns of
// an existing one. Resolution state and enrichment already in the catalog
// survive a re-import untouched.
func (s *Store) Upsert(ctx context.Context, rec *types.TaxonRecord) error {
	if rec.LocalID == "" || rec.ScientificName == "" {
		return errors.New("record needs local_id and scientific_name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeRecord(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// Commit writes back a single processed record: identifier, status, method,
// score, audit list, and enrichment fields. Each record commits
// independently of the rest of the batch.
func (s *Store) Commit(ctx context.Context, rec *types.TaxonRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rejected, _ := json.Marshal(rec.Rejected)
	res, err := tx.ExecContext(ctx,
		`UPDATE taxa SET external_id=?, status=?, method=?, score=?, rejected=?,
			rank_label=?, parent_id=?, conservation_status=?
		 WHERE local_id=?`,
		nullable(rec.ExternalID), string(rec.Status), string(rec.Method), rec.Score,
		string(rejected), rec.RankLabel, rec.ParentID, rec.ConservationStatus,
		rec.LocalID,
	)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", rec.LocalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s not found", rec.LocalID)
	}

	if err := writeLinks(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func writeRecord(ctx context.Context, tx *sql.Tx, rec *types.TaxonRecord) error {
	alternates, _ := json.Marshal(rec.Alternates)
	vernacular, _ := json.Marshal(rec.Vernacular)
	rejected, _ := json.Marshal(rec.Rejected)

	_, err := tx.ExecContext(ctx,
		`INSERT INTO taxa (local_id, scientific_name, alternates, vernacular,
			external_id, status, method, score, rejected,
			rank_label, parent_id, conservation_status, domesticated, observations)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(local_id) DO UPDATE SET
			scientific_name=excluded.scientific_name, alternates=excluded.alternates,
			vernacular=excluded.vernacular,
			domesticated=excluded.domesticated, observations=excluded.observations`,
		rec.LocalID, rec.ScientificName, string(alternates), string(vernacular),
		nullable(rec.ExternalID), string(rec.Status), string(rec.Method), rec.Score,
		string(rejected), rec.RankLabel, rec.ParentID, rec.ConservationStatus,
		boolInt(rec.Domesticated), rec.Observations,
	)
	if err != nil {
		return fmt.Errorf("upserting record %s: %w", rec.LocalID, err)
	}

	// Imports only add links; links already earned through enrichment stay.
	return insertLinks(ctx, tx, rec)
}

func writeLinks(ctx context.Context, tx *sql.Tx, rec *types.TaxonRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE local_id = ?`, rec.LocalID); err != nil {
		return fmt.Errorf("clearing links for %s: %w", rec.LocalID, err)
	}
	return insertLinks(ctx, tx, rec)
}

func insertLinks(ctx context.Context, tx *sql.Tx, rec *types.TaxonRecord) error {
	for lang, url := range rec.Links {
		if url == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO links (url, local_id, lang) VALUES (?, ?, ?)`,
			url, rec.LocalID, lang)
		if err != nil {
			return fmt.Errorf("inserting link for %s: %w", rec.LocalID, err)
		}
	}
	return nil
}

// Unresolved returns the work queue: records with status unresolved that
// pass the caller-supplied filter, ordered by local id for stable runs.
func (s *Store) Unresolved(ctx context.Context, filter types.RecordFilter) ([]*types.TaxonRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM taxa WHERE status = ?`
	args := []interface{}{string(types.StatusUnresolved)}

	if filter.ExcludeDomesticated {
		q += ` AND domesticated = 0`
	}
	if filter.MinObservations > 0 {
		q += ` AND observations >= ?`
		args = append(args, filter.MinObservations)
	}
	q += ` ORDER BY local_id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying unresolved records: %w", err)
	}
	defer rows.Close()

	var records []*types.TaxonRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unresolved records: %w", err)
	}

	for _, rec := range records {
		if err := s.loadLinks(ctx, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Get returns one record by local id, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, localID string) (*types.TaxonRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM taxa WHERE local_id = ?`, localID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLinks(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ByExternalID returns the record holding an external identifier, or nil.
func (s *Store) ByExternalID(ctx context.Context, externalID string) (*types.TaxonRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM taxa WHERE external_id = ?`, externalID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadLinks(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AssignedIDs returns the external identifiers currently held by
// auto-matched records, mapped to their local ids. Seeds the run's
// collision-detection set.
func (s *Store) AssignedIDs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, local_id FROM taxa
		 WHERE status = ? AND external_id IS NOT NULL`,
		string(types.StatusAutoMatched))
	if err != nil {
		return nil, fmt.Errorf("querying assigned identifiers: %w", err)
	}
	defer rows.Close()

	assigned := make(map[string]string)
	for rows.Next() {
		var externalID, localID string
		if err := rows.Scan(&externalID, &localID); err != nil {
			return nil, fmt.Errorf("scanning assigned identifier: %w", err)
		}
		assigned[externalID] = localID
	}
	return assigned, rows.Err()
}

// LinkOwner returns the local id owning the exact link string, if any.
func (s *Store) LinkOwner(ctx context.Context, url string) (string, bool) {
	var localID string
	err := s.db.QueryRowContext(ctx,
		`SELECT local_id FROM links WHERE url = ?`, url).Scan(&localID)
	if err != nil {
		return "", false
	}
	return localID, true
}

// Counts returns the number of records per match status.
func (s *Store) Counts(ctx context.Context) (map[types.MatchStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM taxa GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.MatchStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[types.MatchStatus(status)] = n
	}
	return counts, rows.Err()
}

const recordColumns = `local_id, scientific_name, alternates, vernacular,
	external_id, status, method, score, rejected,
	rank_label, parent_id, conservation_status, domesticated, observations`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*types.TaxonRecord, error) {
	var (
		rec                            types.TaxonRecord
		alternates, vernacular, reject sql.NullString
		externalID, method             sql.NullString
		rank, parent, conservation     sql.NullString
		domesticated                   int
	)
	err := row.Scan(&rec.LocalID, &rec.ScientificName, &alternates, &vernacular,
		&externalID, (*string)(&rec.Status), &method, &rec.Score, &reject,
		&rank, &parent, &conservation, &domesticated, &rec.Observations)
	if err != nil {
		return nil, err
	}

	if alternates.Valid && alternates.String != "" {
		json.Unmarshal([]byte(alternates.String), &rec.Alternates)
	}
	if vernacular.Valid && vernacular.String != "" {
		json.Unmarshal([]byte(vernacular.String), &rec.Vernacular)
	}
	if reject.Valid && reject.String != "" {
		json.Unmarshal([]byte(reject.String), &rec.Rejected)
	}
	rec.ExternalID = externalID.String
	rec.Method = types.MatchMethod(method.String)
	rec.RankLabel = rank.String
	rec.ParentID = parent.String
	rec.ConservationStatus = conservation.String
	rec.Domesticated = domesticated != 0
	return &rec, nil
}

func (s *Store) loadLinks(ctx context.Context, rec *types.TaxonRecord) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lang, url FROM links WHERE local_id = ?`, rec.LocalID)
	if err != nil {
		return fmt.Errorf("loading links for %s: %w", rec.LocalID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var lang, url string
		if err := rows.Scan(&lang, &url); err != nil {
			return fmt.Errorf("scanning link for %s: %w", rec.LocalID, err)
		}
		if rec.Links == nil {
			rec.Links = make(map[string]string)
		}
		rec.Links[lang] = url
	}
	return rows.Err()
}

func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
