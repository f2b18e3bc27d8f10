// Package history keeps a ledger of movie runs and their per-job outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sql/001_initial.sql
var initialSQL string

// DefaultPath is the ledger location inside a movie folder.
func DefaultPath(folder string) string {
	return filepath.Join(folder, ".pdbmovie", "history.db")
}

// Status is the outcome of a job or combine step.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// DirectionCombined marks entries for combined movies.
const DirectionCombined = "combi"

// Run is one invocation of the pipeline.
type Run struct {
	ID         int64
	Folder     string
	Backend    string
	Combine    bool
	StartedAt  time.Time
	FinishedAt *time.Time
	Jobs       int
	Failed     int
}

// Entry is the outcome of one job, or of combining a pair.
type Entry struct {
	ID        int64
	RunID     int64
	Cutoff    float64
	Mode      int
	Direction string
	Status    Status
	Stage     string
	Artifact  string
	SizeBytes int64
	Error     string
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database. Call Migrate before use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the ledger at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := NewStore(db)
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the schema.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.Exec(initialSQL); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished run and its entries in one transaction, setting
// the IDs on run and entries.
func (s *Store) Record(ctx context.Context, run *Run, entries []*Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (folder, backend, combine, started_at, finished_at, jobs, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Folder, run.Backend, run.Combine, run.StartedAt, run.FinishedAt, run.Jobs, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	for _, e := range entries {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO entries (run_id, cutoff, mode, direction, status, stage, artifact, size_bytes, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Cutoff, e.Mode, e.Direction, e.Status, e.Stage, e.Artifact, e.SizeBytes, e.Error,
		)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		if e.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("get last insert id: %w", err)
		}
		e.RunID = runID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	run.ID = runID
	return nil
}

// GetRun retrieves a run by ID.
// Returns ErrNotFound if the run does not exist.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, folder, backend, combine, started_at, finished_at, jobs, failed
		FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Folder, &r.Backend, &r.Combine, &r.StartedAt, &r.FinishedAt, &r.Jobs, &r.Failed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, folder, backend, combine, started_at, finished_at, jobs, failed
		FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.Folder, &r.Backend, &r.Combine, &r.StartedAt, &r.FinishedAt, &r.Jobs, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns a run's entries in the order they were recorded.
func (s *Store) Entries(ctx context.Context, runID int64) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, cutoff, mode, direction, status, stage, artifact, size_bytes, error
		FROM entries WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Cutoff, &e.Mode, &e.Direction, &e.Status, &e.Stage, &e.Artifact, &e.SizeBytes, &e.Error); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
