package sink

import (
	"context"
	"image"
	"sync"

	"github.com/dshills/filmstrip-go/render"
)

// Memory keeps every delivered frame in memory. It is meant for previews and
// tests; a full-length slideshow does not fit.
type Memory struct {
	// Handler is returned by FinalizeHandler. Nil selects immediate mode
	// without post-processing.
	Handler render.FinalizeHandler

	// Draft selects fast scaling.
	Draft bool

	mu        sync.Mutex
	frames    []image.Image
	audio     []string
	prepared  int
	finalized int
	aborted   int
}

func (m *Memory) Prepare(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepared++
	return nil
}

func (m *Memory) ProcessCropAndResize(img image.Image, rect render.Rect, resolution image.Point) (image.Image, error) {
	return CropAndResize(img, rect, resolution, m.Draft)
}

func (m *Memory) FinalizeHandler() render.FinalizeHandler {
	if m.Handler == nil {
		return render.NopFinalizer{FinalizeMode: render.FinalizeImmediate}
	}
	return m.Handler
}

func (m *Memory) ToSink(frame image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
	return nil
}

func (m *Memory) ProcessAudio(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = append(m.audio, path)
	return nil
}

func (m *Memory) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized++
	return nil
}

// ProcessAbort drops the collected frames.
func (m *Memory) ProcessAbort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted++
	m.frames = nil
	return nil
}

func (m *Memory) OutputPath() string { return "memory" }

// Frames returns the delivered frames in order.
func (m *Memory) Frames() []image.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Image(nil), m.frames...)
}

// Audio returns the audio files passed to ProcessAudio.
func (m *Memory) Audio() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.audio...)
}

// Calls reports how often Prepare, Finalize and ProcessAbort ran.
func (m *Memory) Calls() (prepared, finalized, aborted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepared, m.finalized, m.aborted
}
