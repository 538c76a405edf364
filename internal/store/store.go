// Package store persists run history to a SQLite database under the stencil
// home directory. Every generate, validate, and apply invocation records one
// row per document so results stay queryable after the artifacts move.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the runs table. Applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	document_id TEXT NOT NULL,
	provider TEXT,
	valid INTEGER NOT NULL DEFAULT 0,
	mismatch INTEGER NOT NULL DEFAULT 0,
	not_found INTEGER NOT NULL DEFAULT 0,
	invalid_pattern INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL,
	error TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_doc ON runs(document_id);
`

// Run is one recorded command invocation against one document.
type Run struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	Kind           string    `json:"kind"` // "generate", "validate", or "apply"
	DocumentID     string    `json:"document_id"`
	Provider       string    `json:"provider,omitempty"`
	Valid          int       `json:"valid"`
	Mismatch       int       `json:"mismatch"`
	NotFound       int       `json:"not_found"`
	InvalidPattern int       `json:"invalid_pattern"`
	DurationMS     int64     `json:"duration_ms"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store wraps the run history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	s := &Store{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the runs table if it doesn't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("init run store: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one run row.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, kind, document_id, provider, valid, mismatch, not_found, invalid_pattern, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Kind, r.DocumentID, r.Provider,
		r.Valid, r.Mismatch, r.NotFound, r.InvalidPattern,
		r.DurationMS, r.Error, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, run_id, kind, document_id, provider, valid, mismatch, not_found, invalid_pattern, duration_ms, error, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdMs int64
		var provider, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Kind, &r.DocumentID, &provider,
			&r.Valid, &r.Mismatch, &r.NotFound, &r.InvalidPattern,
			&r.DurationMS, &errText, &createdMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Provider = provider.String
		r.Error = errText.String
		r.CreatedAt = time.UnixMilli(createdMs)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
