package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

// Role distinguishes the two ways a task's result is consumed.
type Role int

const (
	// RolePrimary is a task processed as its own output frame.
	RolePrimary Role = iota

	// RoleSubTask is a task processed as a shared dependency of other tasks.
	RoleSubTask
)

func (r Role) String() string {
	if r == RoleSubTask {
		return "sub"
	}
	return "primary"
}

// CacheKey is the composite identity of a cache entry. The same task may be
// registered once as a primary unit and once as a sub-task; the role keeps
// the two entries apart because only primary results are finalized.
type CacheKey struct {
	Task TaskKey
	Role Role
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s#%s", k.Task, k.Role)
}

// cacheEntry memoizes one task result. All fields below mu are guarded by it.
type cacheEntry struct {
	mu       sync.Mutex
	task     Task
	finalize FinalizeHandler
	refCount int
	done     bool
	result   image.Image
	err      error
}

// set stores the computed result. A second call is a programming error.
func (e *cacheEntry) set(result image.Image, err error) {
	if e.done {
		panic(ErrResultAlreadySet)
	}
	e.result = result
	e.err = err
	e.done = true
}

// ResultCache is the reference-counted memoization store of a render job.
//
// Every reference to a task is registered before execution starts. Get
// computes a result at most once per key, hands the memoized value to every
// later caller, and evicts the entry as soon as its last reference has been
// consumed, so memory is bounded by the pending references rather than by
// the job size.
//
// Each entry has its own lock: callers asking for unrelated keys never wait
// for each other, callers asking for the same key wait for the first one to
// finish computing.
type ResultCache struct {
	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry

	handler FinalizeHandler
	mode    FinalizeMode
	timeout time.Duration

	onHit   func(CacheKey)
	onEvict func(CacheKey)
}

// NewResultCache creates a cache. The handler's mode is resolved once: in
// FinalizeImmediate mode primary results are finalized inside Get; in
// FinalizeSmart mode the cache never finalizes. handler may be nil.
func NewResultCache(handler FinalizeHandler) *ResultCache {
	c := &ResultCache{
		entries: make(map[CacheKey]*cacheEntry),
		handler: handler,
		mode:    FinalizeImmediate,
	}
	if handler != nil {
		c.mode = handler.Mode()
	}
	return c
}

// Register adds one reference to the (task, role) entry, creating it on first
// reference. It reports whether the entry was created.
//
// All references of a job are registered before its first Get.
func (c *ResultCache) Register(task Task, role Role) bool {
	key := CacheKey{Task: task.Key(), Role: role}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{task: task}
		if role == RolePrimary && c.mode == FinalizeImmediate {
			e.finalize = c.handler
		}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	e.refCount++
	e.mu.Unlock()
	return !ok
}

// Get returns the result for key, computing it on first use, and releases one
// reference. The entry is evicted when the reference count reaches zero.
//
// A key that was never registered, or whose references are already used up,
// yields a fatal CACHE_MISS error.
func (c *ResultCache) Get(ctx context.Context, key CacheKey, jc JobContext) (image.Image, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return nil, &RenderError{
			Message: "no registered result for " + key.String(),
			Code:    "CACHE_MISS",
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done {
		if c.onHit != nil {
			c.onHit(key)
		}
	} else {
		result, err := runTaskWithTimeout(ctx, e.task, jc, c.timeout)
		if errors.Is(err, ErrAborted) {
			// Abandoned work says nothing about the task; the entry stays
			// unset so a later reference computes it again.
			c.release(key, e)
			return nil, err
		}
		if err == nil && result != nil && e.finalize != nil {
			result, err = e.finalize.ProcessFinalize(result)
		}
		e.set(result, err)
	}

	c.release(key, e)
	return e.result, e.err
}

// release drops one reference of e and evicts it after the last one.
// The caller holds e.mu.
func (c *ResultCache) release(key CacheKey, e *cacheEntry) {
	e.refCount--
	remaining := e.refCount
	if remaining <= 0 {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		if c.onEvict != nil {
			c.onEvict(key)
		}
	}

	Logger().Debug("cache get",
		"key", key.String(),
		"ref_count", remaining)
}

// RefCount returns the outstanding references of key, or 0 if the key is not
// cached.
func (c *ResultCache) RefCount(key CacheKey) int {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refCount
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Used when a job ends early and references remain.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*cacheEntry)
}
