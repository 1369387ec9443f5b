package render

import (
	"fmt"
	"sync"
)

// ReorderBuffer releases out-of-order completions strictly in ascending,
// gapless sequence order.
//
// Push stores a completion and then, still holding the buffer lock, delivers
// every value from the cursor onwards that is present. Deliveries are
// therefore serialized: the deliver function never runs concurrently with
// itself and needs no locking of its own. A value is held only from its
// completion until its turn, so memory is bounded by the completion skew.
type ReorderBuffer[T any] struct {
	mu      sync.Mutex
	next    int
	pending map[int]T
	deliver func(seq int, v T) error
	stopped error
}

// NewReorderBuffer creates a buffer whose cursor starts at 0.
func NewReorderBuffer[T any](deliver func(seq int, v T) error) *ReorderBuffer[T] {
	return &ReorderBuffer[T]{
		pending: make(map[int]T),
		deliver: deliver,
	}
}

// Push records the completion of seq and drains every contiguous value from
// the cursor. It returns the first delivery error; after an error the buffer
// stops delivering and keeps returning that error.
func (b *ReorderBuffer[T]) Push(seq int, v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped != nil {
		return b.stopped
	}
	if seq < b.next {
		return &RenderError{
			Message: fmt.Sprintf("sequence %d already delivered (cursor at %d)", seq, b.next),
			Code:    "DUPLICATE_RESULT",
		}
	}
	if _, dup := b.pending[seq]; dup {
		return &RenderError{
			Message: fmt.Sprintf("sequence %d pushed twice", seq),
			Code:    "DUPLICATE_RESULT",
		}
	}
	b.pending[seq] = v

	for {
		value, ok := b.pending[b.next]
		if !ok {
			return nil
		}
		delete(b.pending, b.next)
		if err := b.deliver(b.next, value); err != nil {
			b.stopped = err
			return err
		}
		b.next++
	}
}

// Next returns the cursor: the lowest sequence number not yet delivered.
func (b *ReorderBuffer[T]) Next() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Pending returns the number of completions waiting for their turn.
func (b *ReorderBuffer[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
