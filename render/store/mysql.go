package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB Store for render farms that share one job
// history across machines.
//
// Schema:
//   - render_jobs: one row per job, upserted on every SaveJob
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore connects to dsn and creates the schema if needed.
//
// DSN format:
//
//	user:password@tcp(localhost:3306)/filmstrip
//
// Never hardcode credentials; read the DSN from the environment:
//
//	st, err := store.NewMySQLStore(os.Getenv("FILMSTRIP_MYSQL_DSN"))
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m := &MySQLStore{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	jobsTable := `
		CREATE TABLE IF NOT EXISTS render_jobs (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			name VARCHAR(512) NOT NULL,
			output_path VARCHAR(1024) NOT NULL,
			status VARCHAR(16) NOT NULL,
			total_frames INT NOT NULL,
			delivered_frames INT NOT NULL,
			failed_tasks INT NOT NULL,
			error_msg TEXT NOT NULL,
			started_at BIGINT NOT NULL,
			finished_at BIGINT NOT NULL,
			INDEX idx_render_jobs_started (started_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := m.db.ExecContext(ctx, jobsTable); err != nil {
		return fmt.Errorf("failed to create render_jobs table: %w", err)
	}
	return nil
}

func (m *MySQLStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// SaveJob inserts or replaces rec.
func (m *MySQLStore) SaveJob(ctx context.Context, rec JobRecord) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO render_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			output_path = VALUES(output_path),
			status = VALUES(status),
			total_frames = VALUES(total_frames),
			delivered_frames = VALUES(delivered_frames),
			failed_tasks = VALUES(failed_tasks),
			error_msg = VALUES(error_msg),
			started_at = VALUES(started_at),
			finished_at = VALUES(finished_at)
	`
	if _, err := m.db.ExecContext(ctx, query, jobArgs(rec)...); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// LoadJob returns the record with the given ID.
func (m *MySQLStore) LoadJob(ctx context.Context, id string) (JobRecord, error) {
	if err := m.checkOpen(); err != nil {
		return JobRecord{}, err
	}

	row := m.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	rec, err := scanJob(row)
	if err != nil && err != ErrNotFound {
		return JobRecord{}, fmt.Errorf("failed to load job: %w", err)
	}
	return rec, err
}

// ListJobs returns records, most recently started first.
func (m *MySQLStore) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	query := `SELECT ` + jobColumns + ` FROM render_jobs ORDER BY started_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return scanJobs(rows)
}

// Ping verifies the connection.
func (m *MySQLStore) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

// Close closes the connection pool.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
