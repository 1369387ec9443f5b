package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// seqImage returns a 1x1 frame whose pixel encodes seq, so tests can tell
// frames apart after delivery.
func seqImage(seq int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: uint8(seq % 256), G: uint8(seq / 256), A: 255})
	return img
}

func seqOf(img image.Image) int {
	if f, ok := img.(finalizedFrame); ok {
		img = f.Image
	}
	c := color.RGBAModel.Convert(img.At(img.Bounds().Min.X, img.Bounds().Min.Y)).(color.RGBA)
	return int(c.R) + int(c.G)*256
}

// finalizedFrame marks frames that went through a test finalize handler.
type finalizedFrame struct {
	image.Image
}

// countingFinalizer wraps frames in finalizedFrame and records what it saw.
type countingFinalizer struct {
	mode FinalizeMode

	mu   sync.Mutex
	seen []image.Image
}

func (f *countingFinalizer) Mode() FinalizeMode { return f.mode }

func (f *countingFinalizer) ProcessFinalize(frame image.Image) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, frame)
	return finalizedFrame{Image: frame}, nil
}

func (f *countingFinalizer) calls() []image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Image(nil), f.seen...)
}

// testRenderer records every interaction of a job with its renderer.
type testRenderer struct {
	handler    FinalizeHandler
	prepareErr error
	sinkErrAt  int // 1-based frame number whose ToSink fails; 0 disables
	onSink     func(n int)
	cropDelay  time.Duration

	cropCalls atomic.Int64

	mu        sync.Mutex
	frames    []image.Image
	audio     []string
	lifecycle []string
}

func newTestRenderer() *testRenderer {
	return &testRenderer{}
}

func (r *testRenderer) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lifecycle = append(r.lifecycle, call)
}

func (r *testRenderer) Prepare(ctx context.Context) error {
	r.record("prepare")
	return r.prepareErr
}

func (r *testRenderer) ProcessCropAndResize(img image.Image, rect Rect, resolution image.Point) (image.Image, error) {
	r.cropCalls.Add(1)
	if r.cropDelay > 0 {
		time.Sleep(r.cropDelay)
	}
	out := image.NewRGBA(image.Rect(0, 0, resolution.X, resolution.Y))
	shade := uint8(int(rect.X) % 256)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = shade, shade, shade, 255
	}
	return out, nil
}

func (r *testRenderer) FinalizeHandler() FinalizeHandler {
	return r.handler
}

func (r *testRenderer) ToSink(frame image.Image) error {
	r.mu.Lock()
	n := len(r.frames) + 1
	if r.sinkErrAt > 0 && n == r.sinkErrAt {
		r.mu.Unlock()
		return errors.New("disk full")
	}
	r.frames = append(r.frames, frame)
	hook := r.onSink
	r.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (r *testRenderer) ProcessAudio(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio = append(r.audio, path)
	return nil
}

func (r *testRenderer) Finalize() error {
	r.record("finalize")
	return nil
}

func (r *testRenderer) ProcessAbort() error {
	r.record("abort")
	return nil
}

func (r *testRenderer) OutputPath() string { return "/tmp/test-output.avi" }

func (r *testRenderer) delivered() []image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]image.Image(nil), r.frames...)
}

func (r *testRenderer) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lifecycle...)
}

func (r *testRenderer) count(call string) int {
	n := 0
	for _, c := range r.calls() {
		if c == call {
			n++
		}
	}
	return n
}

// seqTasks returns n tasks whose results encode their position. Each task
// sleeps a random moment first so workers complete out of order.
func seqTasks(n int, jitter time.Duration) []Task {
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		seq := i
		tasks[i] = &TaskFunc{
			ID:          TaskKey("seq/" + strconv.Itoa(seq)),
			Description: "frame " + strconv.Itoa(seq),
			Fn: func(ctx context.Context, jc JobContext) (image.Image, error) {
				if jitter > 0 {
					time.Sleep(time.Duration(rand.Int63n(int64(jitter))))
				}
				return seqImage(seq), nil
			},
		}
	}
	return tasks
}

// stillPicture returns a picture over a 400x300 source that moves from start
// to target.
func stillPicture(secs float64, start, target Rect, caption string) *StillPicture {
	return &StillPicture{
		Start:    start,
		Target:   target,
		Seconds:  secs,
		Caption:  caption,
		Source:   image.NewRGBA(image.Rect(0, 0, 400, 300)),
		SourceID: "test",
	}
}
