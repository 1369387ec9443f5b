package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite Store, suited to desktop use and
// single-process render farms. It runs in WAL mode so readers do not block
// the writer.
//
// Schema:
//   - render_jobs: one row per job, upserted on every SaveJob
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (and creates if needed) the database at path. Use
// ":memory:" for a throw-away database.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./renders.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	jobsTable := `
		CREATE TABLE IF NOT EXISTS render_jobs (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			output_path TEXT NOT NULL,
			status TEXT NOT NULL,
			total_frames INTEGER NOT NULL,
			delivered_frames INTEGER NOT NULL,
			failed_tasks INTEGER NOT NULL,
			error_msg TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, jobsTable); err != nil {
		return fmt.Errorf("failed to create render_jobs table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_render_jobs_started ON render_jobs(started_at)"); err != nil {
		return fmt.Errorf("failed to create idx_render_jobs_started: %w", err)
	}
	return nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveJob inserts or replaces rec.
func (s *SQLiteStore) SaveJob(ctx context.Context, rec JobRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO render_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			output_path = excluded.output_path,
			status = excluded.status,
			total_frames = excluded.total_frames,
			delivered_frames = excluded.delivered_frames,
			failed_tasks = excluded.failed_tasks,
			error_msg = excluded.error_msg,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`
	if _, err := s.db.ExecContext(ctx, query, jobArgs(rec)...); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// LoadJob returns the record with the given ID.
func (s *SQLiteStore) LoadJob(ctx context.Context, id string) (JobRecord, error) {
	if err := s.checkOpen(); err != nil {
		return JobRecord{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	rec, err := scanJob(row)
	if err != nil && err != ErrNotFound {
		return JobRecord{}, fmt.Errorf("failed to load job: %w", err)
	}
	return rec, err
}

// ListJobs returns records, most recently started first.
func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM render_jobs ORDER BY started_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return scanJobs(rows)
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
