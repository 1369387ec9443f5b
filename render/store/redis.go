package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps job records in Redis: each record is a JSON string under
// "<prefix>job:<id>" and a sorted set "<prefix>jobs" orders IDs by start
// time.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. prefix namespaces all keys, e.g.
// "filmstrip:".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) jobKey(id string) string { return r.prefix + "job:" + id }
func (r *RedisStore) indexKey() string        { return r.prefix + "jobs" }

// SaveJob inserts or replaces rec.
func (r *RedisStore) SaveJob(ctx context.Context, rec JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.jobKey(rec.ID), data, 0)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(unixNano(rec.StartedAt)),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// LoadJob returns the record with the given ID.
func (r *RedisStore) LoadJob(ctx context.Context, id string) (JobRecord, error) {
	data, err := r.rdb.Get(ctx, r.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return JobRecord{}, ErrNotFound
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("failed to load job: %w", err)
	}

	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return JobRecord{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return rec, nil
}

// ListJobs returns records, most recently started first.
func (r *RedisStore) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	recs := make([]JobRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.LoadJob(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
