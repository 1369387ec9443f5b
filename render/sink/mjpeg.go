package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/icza/mjpeg"

	"github.com/dshills/filmstrip-go/render"
)

// ErrAudioUnsupported is returned by renderers whose container cannot carry
// an audio track.
var ErrAudioUnsupported = errors.New("output format does not support audio")

// MJPEGRenderer writes an AVI file of JPEG frames.
//
// Frames are JPEG encoded by the workers (JPEGEncoder runs in immediate
// mode); ToSink only appends the bytes.
type MJPEGRenderer struct {
	path    string
	profile render.Profile
	cfg     config

	writer mjpeg.AviWriter
	frames int
}

// NewMJPEGRenderer creates a renderer writing to path. The file is created by
// Prepare.
func NewMJPEGRenderer(path string, profile render.Profile, opts ...Option) (*MJPEGRenderer, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.smoothing > 0 {
		return nil, fmt.Errorf("mjpeg output does not support smoothing")
	}
	return &MJPEGRenderer{path: path, profile: profile, cfg: cfg}, nil
}

// Prepare creates the AVI file.
func (r *MJPEGRenderer) Prepare(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	fps := int32(math.Round(r.profile.Framerate))
	w, err := mjpeg.New(r.path, int32(r.profile.Resolution.X), int32(r.profile.Resolution.Y), fps)
	if err != nil {
		return fmt.Errorf("create video writer: %w", err)
	}
	r.writer = w
	render.Logger().Debug("mjpeg output opened", "path", r.path, "fps", fps)
	return nil
}

// ProcessCropAndResize implements render.Renderer.
func (r *MJPEGRenderer) ProcessCropAndResize(img image.Image, rect render.Rect, resolution image.Point) (image.Image, error) {
	return CropAndResize(img, rect, resolution, r.cfg.draft)
}

// FinalizeHandler returns the JPEG encoder.
func (r *MJPEGRenderer) FinalizeHandler() render.FinalizeHandler {
	return JPEGEncoder{Quality: r.cfg.quality}
}

// ToSink appends one frame.
func (r *MJPEGRenderer) ToSink(frame image.Image) error {
	if r.writer == nil {
		return fmt.Errorf("mjpeg output %s is not open", r.path)
	}
	data, err := r.encode(frame)
	if err != nil {
		return err
	}
	if err := r.writer.AddFrame(data); err != nil {
		return fmt.Errorf("add frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

func (r *MJPEGRenderer) encode(frame image.Image) ([]byte, error) {
	if ef, ok := frame.(*EncodedFrame); ok {
		return ef.Data, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: r.cfg.quality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", r.frames, err)
	}
	return buf.Bytes(), nil
}

// ProcessAudio always fails: AVI files written here carry video only.
func (r *MJPEGRenderer) ProcessAudio(path string) error {
	return fmt.Errorf("%s: %w", path, ErrAudioUnsupported)
}

// Finalize writes the AVI index and closes the file.
func (r *MJPEGRenderer) Finalize() error {
	if r.writer == nil {
		return nil
	}
	w := r.writer
	r.writer = nil
	if err := w.Close(); err != nil {
		return fmt.Errorf("close video writer: %w", err)
	}
	return nil
}

// ProcessAbort closes and deletes the partial file and its subtitles.
func (r *MJPEGRenderer) ProcessAbort() error {
	if r.writer != nil {
		_ = r.writer.Close()
		r.writer = nil
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove partial output: %w", err)
	}
	return removeSubtitles(r.path)
}

// OutputPath returns the AVI file path.
func (r *MJPEGRenderer) OutputPath() string { return r.path }

// Frames returns the number of frames written so far.
func (r *MJPEGRenderer) Frames() int { return r.frames }
