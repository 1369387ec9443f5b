package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. Records are lost when the process exits.
// Safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	jobs map[string]JobRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]JobRecord)}
}

// SaveJob inserts or replaces rec.
func (m *MemStore) SaveJob(_ context.Context, rec JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[rec.ID] = rec
	return nil
}

// LoadJob returns the record with the given ID.
func (m *MemStore) LoadJob(_ context.Context, id string) (JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.jobs[id]
	if !ok {
		return JobRecord{}, ErrNotFound
	}
	return rec, nil
}

// ListJobs returns records, most recently started first.
func (m *MemStore) ListJobs(_ context.Context, limit int) ([]JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]JobRecord, 0, len(m.jobs))
	for _, rec := range m.jobs {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].StartedAt.Equal(recs[j].StartedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].StartedAt.After(recs[j].StartedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
