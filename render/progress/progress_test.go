package progress_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/dshills/filmstrip-go/render"
	"github.com/dshills/filmstrip-go/render/progress"
)

var (
	_ render.ProgressReporter = (*progress.Counter)(nil)
	_ render.ProgressReporter = (*progress.Bar)(nil)
)

func TestCounter(t *testing.T) {
	c := progress.NewCounter()

	var last int
	c.OnStep = func(current, _ int) { last = current }

	c.SetMaxProgress(10)
	c.Step()
	c.Steps(5)
	c.SetInfo("processing picture pic001")

	if c.Current() != 6 {
		t.Errorf("expected 6 steps, got %d", c.Current())
	}
	if c.Max() != 10 {
		t.Errorf("expected max 10, got %d", c.Max())
	}
	if last != 6 {
		t.Errorf("OnStep saw %d, want 6", last)
	}
	if c.Info() != "processing picture pic001" {
		t.Errorf("unexpected info %q", c.Info())
	}
	if c.IsAborted() {
		t.Error("counter should not start aborted")
	}
	c.Abort()
	if !c.IsAborted() {
		t.Error("expected aborted after Abort")
	}
	if c.IsDone() {
		t.Error("Done not called yet")
	}
	c.Done()
	if !c.IsDone() {
		t.Error("expected done")
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := progress.NewCounter()
	c.SetMaxProgress(1000)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Step()
				c.SetInfo("working")
			}
		}()
	}
	wg.Wait()

	if c.Current() != 1000 {
		t.Errorf("expected 1000 steps, got %d", c.Current())
	}
}

func TestBar(t *testing.T) {
	var buf bytes.Buffer
	b := progress.NewBar(&buf)

	b.SetMaxProgress(20)
	b.SetInfo("processing transition pic000 -> pic001")
	b.Step()
	b.Steps(4)

	if b.Current() != 5 {
		t.Errorf("expected position 5, got %d", b.Current())
	}
	if b.IsAborted() {
		t.Error("bar should not start aborted")
	}
	b.Abort()
	if !b.IsAborted() {
		t.Error("expected aborted after Abort")
	}
	b.Done()
}
