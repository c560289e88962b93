// Package catalog keeps a SQLite ledger of pipeline runs so past and active
// recordings can be listed without scanning the output tree.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"stemfetch/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes; a mismatched database
// must be deleted and recreated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// RunStatus represents the lifecycle of a catalogued run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one pipeline invocation over a recording directory.
type Run struct {
	ID           int64
	RecordingID  string
	Directory    string
	Status       RunStatus
	FinalPath    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.CatalogDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordStart registers a running entry for the directory, reusing the prior
// row when the same directory is resumed.
func (s *Store) RecordStart(ctx context.Context, recordingID, directory string) (*Run, error) {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (recording_id, directory, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(directory) DO UPDATE SET
    status = excluded.status,
    error_message = '',
    updated_at = excluded.updated_at`,
		recordingID, directory, string(RunRunning), stamp, stamp)
	if err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}
	return s.byDirectory(ctx, directory)
}

// MarkCompleted transitions a run to completed with its final artifact.
func (s *Store) MarkCompleted(ctx context.Context, id int64, finalPath string) error {
	return s.setStatus(ctx, id, RunCompleted, finalPath, "")
}

// MarkFailed transitions a run to failed with the error message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	return s.setStatus(ctx, id, RunFailed, "", message)
}

func (s *Store) setStatus(ctx context.Context, id int64, status RunStatus, finalPath, message string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, final_path = ?, error_message = ?, updated_at = ?
WHERE id = ?`,
		string(status), finalPath, message, stamp, id)
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update run %d: no such run", id)
	}
	return nil
}

// List returns all runs, newest first.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, recording_id, directory, status, final_path, error_message, created_at, updated_at
FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) byDirectory(ctx context.Context, directory string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, recording_id, directory, status, final_path, error_message, created_at, updated_at
FROM runs WHERE directory = ?`, directory)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status, createdAt, updatedAt string
	err := row.Scan(&run.ID, &run.RecordingID, &run.Directory, &status,
		&run.FinalPath, &run.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return run, nil
}
