// Package postgres provides the Postgres-backed persistence layer for cases
// and their documents.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hakilens/hakilens-scraper/internal/metrics"
	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// judgesSeparator joins the ordered judge names into the text column.
const judgesSeparator = "; "

// db is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store persists case rows and document rows in Postgres.
type Store struct {
	pool db
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool db) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Bootstrap creates the schema if it does not exist.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &scrape.StoreError{Op: "bootstrap", Err: err}
		}
	}
	return nil
}

const upsertCaseSQL = `
INSERT INTO cases (
	source_url, title, case_number, citation, court, parties, judges,
	date, content_text, snapshot_path
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (source_url) DO UPDATE SET
	title = EXCLUDED.title,
	case_number = EXCLUDED.case_number,
	citation = EXCLUDED.citation,
	court = EXCLUDED.court,
	parties = EXCLUDED.parties,
	judges = EXCLUDED.judges,
	date = EXCLUDED.date,
	content_text = EXCLUDED.content_text,
	snapshot_path = EXCLUDED.snapshot_path,
	updated_at = now()
RETURNING id`

// UpsertCase inserts or updates the row keyed by source_url and returns the
// stable case id. The id, created_at and summary columns are never touched on
// update; summary belongs to the AI layer.
func (s *Store) UpsertCase(ctx context.Context, rec scrape.CaseRecord) (int64, error) {
	if rec.SourceURL == "" {
		return 0, &scrape.StoreError{Op: "upsert_case", Err: errors.New("source_url is required")}
	}
	var id int64
	err := s.pool.QueryRow(ctx, upsertCaseSQL,
		rec.SourceURL,
		rec.Title,
		rec.CaseNumber,
		rec.Citation,
		rec.Court,
		rec.Parties,
		strings.Join(rec.Judges, judgesSeparator),
		rec.Date,
		rec.ContentText,
		rec.SnapshotPath,
	).Scan(&id)
	if err != nil {
		return 0, &scrape.StoreError{Op: "upsert_case", Err: err}
	}
	metrics.ObserveCaseStored()
	return id, nil
}

const upsertDocumentSQL = `
INSERT INTO documents (case_id, source_url, local_path, mime_type, kind)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (case_id, source_url) DO UPDATE SET
	local_path = EXCLUDED.local_path,
	mime_type = EXCLUDED.mime_type,
	kind = EXCLUDED.kind`

// UpsertDocument inserts or updates the document row keyed by
// (case_id, source_url). The binary payload is written to disk by the
// archive before this is called; only the reference lands here.
func (s *Store) UpsertDocument(ctx context.Context, caseID int64, doc scrape.Document) error {
	if doc.SourceURL == "" {
		return &scrape.StoreError{Op: "upsert_document", Err: errors.New("source_url is required")}
	}
	_, err := s.pool.Exec(ctx, upsertDocumentSQL,
		caseID, doc.SourceURL, doc.LocalPath, doc.MimeType, string(doc.Kind),
	)
	if err != nil {
		return &scrape.StoreError{Op: "upsert_document", Err: err}
	}
	metrics.ObserveDocumentStored(string(doc.Kind))
	return nil
}

const searchCasesSQL = `
SELECT id, source_url, title, citation, court, date, created_at
FROM cases
WHERE title ILIKE $1 OR content_text ILIKE $1
ORDER BY (CASE WHEN title ILIKE $1 THEN 0 ELSE 1 END), created_at DESC, id DESC
LIMIT $2 OFFSET $3`

// likeEscaper neutralizes ILIKE metacharacters in user queries, so a query
// like "100%" matches the literal text instead of every row.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikePattern(query string) string {
	return likeEscaper.Replace(query)
}

// SearchCases runs a naive keyword match over title and body text. Title hits
// rank before body-only hits; ties break by recency then id, so identical
// inputs always return the same order.
func (s *Store) SearchCases(ctx context.Context, query string, limit, offset int) ([]scrape.CaseSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	pattern := "%" + escapeLikePattern(query) + "%"
	rows, err := s.pool.Query(ctx, searchCasesSQL, pattern, limit, offset)
	if err != nil {
		return nil, &scrape.StoreError{Op: "search_cases", Err: err}
	}
	defer rows.Close()

	var out []scrape.CaseSummary
	for rows.Next() {
		var c scrape.CaseSummary
		if err := rows.Scan(&c.ID, &c.SourceURL, &c.Title, &c.Citation, &c.Court, &c.Date, &c.CreatedAt); err != nil {
			return nil, &scrape.StoreError{Op: "search_cases", Err: err}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &scrape.StoreError{Op: "search_cases", Err: err}
	}
	return out, nil
}

// CaseDetail is the full stored row, read back for the API and AI layers.
type CaseDetail struct {
	ID          int64     `json:"id"`
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	CaseNumber  string    `json:"case_number"`
	Citation    string    `json:"citation"`
	Court       string    `json:"court"`
	Parties     string    `json:"parties"`
	Judges      []string  `json:"judges"`
	Date        string    `json:"date"`
	ContentText string    `json:"content_text"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const getCaseSQL = `
SELECT id, source_url, title, case_number, citation, court, parties,
	COALESCE(judges, ''), date, content_text, COALESCE(summary, ''),
	created_at, updated_at
FROM cases WHERE id = $1`

// ErrNotFound is returned when a case id has no row.
var ErrNotFound = errors.New("case not found")

// GetCase reads one case row by id.
func (s *Store) GetCase(ctx context.Context, id int64) (CaseDetail, error) {
	var (
		c      CaseDetail
		judges string
	)
	err := s.pool.QueryRow(ctx, getCaseSQL, id).Scan(
		&c.ID, &c.SourceURL, &c.Title, &c.CaseNumber, &c.Citation, &c.Court,
		&c.Parties, &judges, &c.Date, &c.ContentText, &c.Summary,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CaseDetail{}, ErrNotFound
	}
	if err != nil {
		return CaseDetail{}, &scrape.StoreError{Op: "get_case", Err: err}
	}
	if judges != "" {
		c.Judges = strings.Split(judges, judgesSeparator)
	}
	return c, nil
}

const listDocumentsSQL = `
SELECT id, case_id, source_url, local_path, COALESCE(mime_type, ''), kind
FROM documents WHERE case_id = $1 ORDER BY id`

// ListDocuments returns the documents owned by a case, oldest first.
func (s *Store) ListDocuments(ctx context.Context, caseID int64) ([]scrape.Document, error) {
	rows, err := s.pool.Query(ctx, listDocumentsSQL, caseID)
	if err != nil {
		return nil, &scrape.StoreError{Op: "list_documents", Err: err}
	}
	defer rows.Close()

	var out []scrape.Document
	for rows.Next() {
		var (
			d    scrape.Document
			kind string
		)
		if err := rows.Scan(&d.ID, &d.CaseID, &d.SourceURL, &d.LocalPath, &d.MimeType, &kind); err != nil {
			return nil, &scrape.StoreError{Op: "list_documents", Err: err}
		}
		d.Kind = scrape.DocKind(kind)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &scrape.StoreError{Op: "list_documents", Err: err}
	}
	return out, nil
}

const setSummarySQL = `UPDATE cases SET summary = $2, updated_at = now() WHERE id = $1`

// SetSummary writes the AI-produced summary for a case. It touches no other
// column.
func (s *Store) SetSummary(ctx context.Context, caseID int64, summary string) error {
	tag, err := s.pool.Exec(ctx, setSummarySQL, caseID, summary)
	if err != nil {
		return &scrape.StoreError{Op: "set_summary", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
