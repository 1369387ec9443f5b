package store

import (
	"database/sql"
	"time"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const jobColumns = `id, name, output_path, status, total_frames, delivered_frames, failed_tasks, error_msg, started_at, finished_at`

// jobArgs flattens rec in jobColumns order. Times are stored as Unix
// nanoseconds so both SQL dialects share one schema.
func jobArgs(rec JobRecord) []any {
	return []any{
		rec.ID, rec.Name, rec.OutputPath, rec.Status,
		rec.TotalFrames, rec.DeliveredFrames, rec.FailedTasks, rec.Error,
		unixNano(rec.StartedAt), unixNano(rec.FinishedAt),
	}
}

func scanJob(row rowScanner) (JobRecord, error) {
	var (
		rec               JobRecord
		started, finished int64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.OutputPath, &rec.Status,
		&rec.TotalFrames, &rec.DeliveredFrames, &rec.FailedTasks, &rec.Error,
		&started, &finished)
	if err == sql.ErrNoRows {
		return JobRecord{}, ErrNotFound
	}
	if err != nil {
		return JobRecord{}, err
	}
	rec.StartedAt = fromUnixNano(started)
	rec.FinishedAt = fromUnixNano(finished)
	return rec, nil
}

func scanJobs(rows *sql.Rows) ([]JobRecord, error) {
	defer rows.Close()
	recs := []JobRecord{}
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
