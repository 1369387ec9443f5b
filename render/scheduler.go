package render

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkItem is a schedulable unit of work: one output frame request.
//
// Seq is the frame's position in the output. OrderKey decides dequeue
// priority; it equals Seq so that early frames are computed first and the
// reorder buffer stays small.
type WorkItem struct {
	Seq      int
	OrderKey uint64
	Task     Task
}

// NewWorkItem creates the work item for output position seq.
func NewWorkItem(seq int, task Task) WorkItem {
	return WorkItem{Seq: seq, OrderKey: uint64(seq), Task: task}
}

// workHeap implements heap.Interface ordered by OrderKey.
type workHeap []WorkItem

func (h workHeap) Len() int { return len(h) }

func (h workHeap) Less(i, j int) bool {
	return h[i].OrderKey < h[j].OrderKey
}

func (h workHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *workHeap) Push(x interface{}) {
	*h = append(*h, x.(WorkItem))
}

func (h *workHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// Frontier is the job's work queue. It combines a priority heap for ordering
// with a buffered channel for bounded depth: the channel carries one token
// per queued item and Dequeue pops the heap minimum for each token received.
//
// Thread-safety: all methods are safe for concurrent use.
type Frontier struct {
	heap     workHeap
	queue    chan struct{}
	capacity int
	mu       sync.Mutex
	closed   bool
}

// NewFrontier creates a frontier that holds up to capacity items.
func NewFrontier(capacity int) *Frontier {
	if capacity < 1 {
		capacity = 1
	}
	f := &Frontier{
		heap:     make(workHeap, 0, capacity),
		queue:    make(chan struct{}, capacity),
		capacity: capacity,
	}
	heap.Init(&f.heap)
	return f
}

// Enqueue adds a work item, blocking while the frontier is full.
func (f *Frontier) Enqueue(ctx context.Context, item WorkItem) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return &RenderError{Message: "enqueue on closed frontier", Code: "FRONTIER_CLOSED"}
	}
	heap.Push(&f.heap, item)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case f.queue <- struct{}{}:
		return nil
	}
}

// Close marks the end of input. Items already queued are still handed out.
// Close must not race with Enqueue.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
}

// Dequeue returns the queued item with the smallest OrderKey, blocking until
// one is available. It returns ErrFrontierDrained once the frontier is closed
// and empty, or the context error if ctx is cancelled first.
func (f *Frontier) Dequeue(ctx context.Context) (WorkItem, error) {
	var zero WorkItem

	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case _, ok := <-f.queue:
		if !ok {
			return zero, ErrFrontierDrained
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.heap.Len() == 0 {
			return zero, ErrFrontierDrained
		}
		return heap.Pop(&f.heap).(WorkItem), nil
	}
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heap.Len()
}

// WorkerPool runs a fixed number of long-lived workers that pull items from a
// frontier until it is drained. Completion order across workers is not
// defined; ordering is the caller's concern.
type WorkerPool struct {
	workers int
}

// NewWorkerPool creates a pool with the given number of workers (at least 1).
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers}
}

// Workers returns the pool size.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Run processes every item of f with fn. The first error returned by fn
// cancels the remaining workers and is returned. Cancellation of ctx stops the
// workers and is not reported as an error: aborts are the caller's to detect.
func (p *WorkerPool) Run(ctx context.Context, f *Frontier, fn func(ctx context.Context, item WorkItem) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for {
				item, err := f.Dequeue(gctx)
				if errors.Is(err, ErrFrontierDrained) {
					return nil
				}
				if err != nil {
					// Context cancelled: either the caller aborted or a
					// sibling failed and errgroup reports that error.
					return nil
				}
				if err := fn(gctx, item); err != nil {
					return err
				}
			}
		})
	}

	return g.Wait()
}
