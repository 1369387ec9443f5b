// Package store persists the history of render jobs.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested job ID does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Status values of a JobRecord.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusFailed    = "failed"
)

// JobRecord is the persisted summary of one render job.
type JobRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	OutputPath      string    `json:"output_path"`
	Status          string    `json:"status"`
	TotalFrames     int       `json:"total_frames"`
	DeliveredFrames int       `json:"delivered_frames"`
	FailedTasks     int       `json:"failed_tasks"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// Store persists job records.
//
// A job saves its record twice: once when it begins (status running) and once
// when it is done. SaveJob therefore inserts or replaces by ID.
//
// Implementations:
//   - MemStore: in-process, for tests and previews
//   - SQLiteStore: single-file database
//   - MySQLStore: shared relational database
//   - RedisStore: shared key-value store
type Store interface {
	// SaveJob inserts or replaces the record with rec.ID.
	SaveJob(ctx context.Context, rec JobRecord) error

	// LoadJob returns the record with the given ID, or ErrNotFound.
	LoadJob(ctx context.Context, id string) (JobRecord, error)

	// ListJobs returns up to limit records, most recently started first.
	// A non-positive limit returns every record.
	ListJobs(ctx context.Context, limit int) ([]JobRecord, error)
}
