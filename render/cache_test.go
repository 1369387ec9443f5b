package render

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func countedTask(key TaskKey, calls *atomic.Int64, result image.Image, err error) *TaskFunc {
	return &TaskFunc{
		ID: key,
		Fn: func(ctx context.Context, jc JobContext) (image.Image, error) {
			calls.Add(1)
			time.Sleep(time.Millisecond)
			return result, err
		},
	}
}

func TestResultCache_ComputesOnceUnderContention(t *testing.T) {
	var calls atomic.Int64
	task := countedTask("crop/a", &calls, seqImage(7), nil)

	cache := NewResultCache(nil)
	const refs = 32
	for i := 0; i < refs; i++ {
		created := cache.Register(task, RolePrimary)
		if created != (i == 0) {
			t.Fatalf("Register #%d reported created=%v", i, created)
		}
	}

	key := CacheKey{Task: task.Key(), Role: RolePrimary}
	var wg sync.WaitGroup
	results := make([]image.Image, refs)
	for i := 0; i < refs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := cache.Get(context.Background(), key, nil)
			if err != nil {
				t.Errorf("Get failed: %v", err)
			}
			results[i] = img
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("task computed %d times, want 1", calls.Load())
	}
	for i, img := range results {
		if seqOf(img) != 7 {
			t.Errorf("result %d = %d, want 7", i, seqOf(img))
		}
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after all references, got %d entries", cache.Len())
	}
}

func TestResultCache_EvictsAfterLastReference(t *testing.T) {
	var calls atomic.Int64
	task := countedTask("crop/b", &calls, seqImage(1), nil)

	var evicted []CacheKey
	cache := NewResultCache(nil)
	cache.onEvict = func(key CacheKey) { evicted = append(evicted, key) }

	cache.Register(task, RolePrimary)
	cache.Register(task, RolePrimary)
	key := CacheKey{Task: task.Key(), Role: RolePrimary}

	if cache.RefCount(key) != 2 {
		t.Fatalf("expected 2 references, got %d", cache.RefCount(key))
	}

	if _, err := cache.Get(context.Background(), key, nil); err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	if cache.RefCount(key) != 1 || cache.Len() != 1 {
		t.Errorf("after first Get: refs=%d len=%d, want 1/1", cache.RefCount(key), cache.Len())
	}

	if _, err := cache.Get(context.Background(), key, nil); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("entry not evicted, len=%d", cache.Len())
	}
	if len(evicted) != 1 || evicted[0] != key {
		t.Errorf("unexpected evictions %v", evicted)
	}

	_, err := cache.Get(context.Background(), key, nil)
	var re *RenderError
	if !errors.As(err, &re) || re.Code != "CACHE_MISS" {
		t.Fatalf("expected CACHE_MISS, got %v", err)
	}
	if !IsFatal(err) {
		t.Error("CACHE_MISS must be fatal")
	}
}

func TestResultCache_RolesAreSeparateEntries(t *testing.T) {
	var calls atomic.Int64
	task := countedTask("crop/c", &calls, seqImage(3), nil)

	cache := NewResultCache(nil)
	if !cache.Register(task, RolePrimary) {
		t.Error("primary entry should be new")
	}
	if !cache.Register(task, RoleSubTask) {
		t.Error("sub-task entry should be new")
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}

	for _, role := range []Role{RolePrimary, RoleSubTask} {
		if _, err := cache.Get(context.Background(), CacheKey{Task: task.Key(), Role: role}, nil); err != nil {
			t.Fatalf("Get(%s) failed: %v", role, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected one computation per role, got %d", calls.Load())
	}
}

func TestResultCache_FinalizeModes(t *testing.T) {
	tests := []struct {
		name          string
		mode          FinalizeMode
		role          Role
		wantFinalized bool
	}{
		{"immediate primary", FinalizeImmediate, RolePrimary, true},
		{"immediate sub-task", FinalizeImmediate, RoleSubTask, false},
		{"smart primary", FinalizeSmart, RolePrimary, false},
		{"smart sub-task", FinalizeSmart, RoleSubTask, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			task := countedTask("crop/f", &calls, seqImage(5), nil)
			handler := &countingFinalizer{mode: tt.mode}

			cache := NewResultCache(handler)
			cache.Register(task, tt.role)
			cache.Register(task, tt.role)
			key := CacheKey{Task: task.Key(), Role: tt.role}

			for i := 0; i < 2; i++ {
				img, err := cache.Get(context.Background(), key, nil)
				if err != nil {
					t.Fatalf("Get failed: %v", err)
				}
				_, finalized := img.(finalizedFrame)
				if finalized != tt.wantFinalized {
					t.Errorf("finalized=%v, want %v", finalized, tt.wantFinalized)
				}
			}

			want := 0
			if tt.wantFinalized {
				want = 1
			}
			if got := len(handler.calls()); got != want {
				t.Errorf("handler called %d times, want %d", got, want)
			}
		})
	}
}

func TestResultCache_MemoizesErrors(t *testing.T) {
	var calls atomic.Int64
	boom := errors.New("decode failed")
	task := countedTask("crop/err", &calls, nil, boom)

	cache := NewResultCache(nil)
	cache.Register(task, RoleSubTask)
	cache.Register(task, RoleSubTask)
	key := CacheKey{Task: task.Key(), Role: RoleSubTask}

	for i := 0; i < 2; i++ {
		if _, err := cache.Get(context.Background(), key, nil); !errors.Is(err, boom) {
			t.Errorf("Get #%d: expected memoized error, got %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("failed computation ran %d times, want 1", calls.Load())
	}
}

func TestResultCache_Timeout(t *testing.T) {
	task := &TaskFunc{
		ID: "slow",
		Fn: func(ctx context.Context, jc JobContext) (image.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	cache := NewResultCache(nil)
	cache.timeout = 10 * time.Millisecond
	cache.Register(task, RolePrimary)

	_, err := cache.Get(context.Background(), CacheKey{Task: "slow", Role: RolePrimary}, nil)
	var te *TaskError
	if !errors.As(err, &te) {
		t.Fatalf("expected TaskError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded cause, got %v", err)
	}
	if IsFatal(err) {
		t.Error("a timeout must not be fatal")
	}
}

func TestResultCache_CancelledContextIsAbort(t *testing.T) {
	var calls atomic.Int64
	task := countedTask("crop/cancel", &calls, seqImage(0), nil)

	cache := NewResultCache(nil)
	cache.Register(task, RolePrimary)
	cache.Register(task, RolePrimary)
	key := CacheKey{Task: task.Key(), Role: RolePrimary}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Get(ctx, key, nil)
	if !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("task ran after cancellation")
	}

	// The abandoned attempt is not remembered.
	got, err := cache.Get(context.Background(), key, nil)
	if err != nil || got == nil {
		t.Fatalf("second reference: %v, %v", got, err)
	}
	if calls.Load() != 1 {
		t.Errorf("task ran %d times, want 1", calls.Load())
	}
	if cache.Len() != 0 {
		t.Errorf("entry not evicted after its last reference")
	}
}

func TestCacheEntry_SetTwicePanics(t *testing.T) {
	e := &cacheEntry{}
	e.set(seqImage(1), nil)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on second set")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, ErrResultAlreadySet) {
			t.Errorf("unexpected panic value %v", r)
		}
	}()
	e.set(seqImage(2), nil)
}

func TestResultCache_Clear(t *testing.T) {
	var calls atomic.Int64
	cache := NewResultCache(nil)
	cache.Register(countedTask("a", &calls, nil, nil), RolePrimary)
	cache.Register(countedTask("b", &calls, nil, nil), RoleSubTask)

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d", cache.Len())
	}
	if cache.RefCount(CacheKey{Task: "a", Role: RolePrimary}) != 0 {
		t.Error("cleared key still has references")
	}
}
