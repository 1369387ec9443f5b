package progress

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Bar draws a terminal progress bar. The bar's description shows the job's
// current status text.
type Bar struct {
	bar     *progressbar.ProgressBar
	aborted atomic.Bool
	current atomic.Int64
}

// NewBar creates a bar writing to w. A nil writer selects os.Stderr.
func NewBar(w io.Writer) *Bar {
	if w == nil {
		w = os.Stderr
	}
	return &Bar{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("rendering"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() {
				_, _ = io.WriteString(w, "\n")
			}),
		),
	}
}

func (b *Bar) SetMaxProgress(n int) { b.bar.ChangeMax(n) }

func (b *Bar) Step() { b.Steps(1) }

func (b *Bar) Steps(k int) {
	b.current.Add(int64(k))
	_ = b.bar.Add(k)
}

func (b *Bar) SetInfo(text string) { b.bar.Describe(text) }

func (b *Bar) IsAborted() bool { return b.aborted.Load() }

// Abort asks the job to stop.
func (b *Bar) Abort() { b.aborted.Store(true) }

func (b *Bar) Done() { _ = b.bar.Finish() }

// Current returns the bar's position.
func (b *Bar) Current() int64 { return b.current.Load() }
