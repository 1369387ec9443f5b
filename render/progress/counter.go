// Package progress provides progress reporters for render jobs: a silent
// Counter for services and tests and a terminal Bar for command line tools.
// Both implement render.ProgressReporter and can be aborted from any
// goroutine.
package progress

import (
	"sync"
	"sync/atomic"
)

// Counter records progress without displaying it.
type Counter struct {
	aborted atomic.Bool

	mu      sync.Mutex
	max     int
	current int
	info    string
	done    bool

	// OnStep, if set, is called after every Step or Steps with the new
	// position. It runs on the calling goroutine, under no lock.
	OnStep func(current, total int)
}

// NewCounter creates a Counter.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) SetMaxProgress(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.max = n
}

func (c *Counter) Step() { c.Steps(1) }

func (c *Counter) Steps(k int) {
	c.mu.Lock()
	c.current += k
	current, total := c.current, c.max
	c.mu.Unlock()

	if c.OnStep != nil {
		c.OnStep(current, total)
	}
}

func (c *Counter) SetInfo(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = text
}

func (c *Counter) IsAborted() bool { return c.aborted.Load() }

// Abort asks the job to stop.
func (c *Counter) Abort() { c.aborted.Store(true) }

func (c *Counter) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
}

// Current returns the number of steps taken.
func (c *Counter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Max returns the announced number of steps.
func (c *Counter) Max() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

// Info returns the last status text.
func (c *Counter) Info() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// IsDone reports whether Done was called.
func (c *Counter) IsDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
