package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/dshills/filmstrip-go/render"
)

// ImageSequenceRenderer writes every frame as a numbered PNG file
// (frame_000000.png, frame_000001.png, ...) into a directory. Audio files are
// copied next to the frames so an external muxer can pick them up.
type ImageSequenceRenderer struct {
	dir string
	cfg config

	finalizer render.FinalizeHandler
	written   []string
}

// NewImageSequenceRenderer creates a renderer writing into dir.
func NewImageSequenceRenderer(dir string, opts ...Option) (*ImageSequenceRenderer, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	r := &ImageSequenceRenderer{dir: dir, cfg: cfg}
	if cfg.smoothing > 0 {
		r.finalizer = &TemporalSmoother{Weight: cfg.smoothing}
	} else {
		r.finalizer = render.NopFinalizer{FinalizeMode: render.FinalizeImmediate}
	}
	return r, nil
}

// Prepare creates the output directory.
func (r *ImageSequenceRenderer) Prepare(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// ProcessCropAndResize implements render.Renderer.
func (r *ImageSequenceRenderer) ProcessCropAndResize(img image.Image, rect render.Rect, resolution image.Point) (image.Image, error) {
	return CropAndResize(img, rect, resolution, r.cfg.draft)
}

// FinalizeHandler returns the temporal smoother when smoothing is enabled.
func (r *ImageSequenceRenderer) FinalizeHandler() render.FinalizeHandler {
	return r.finalizer
}

// ToSink writes the next PNG file.
func (r *ImageSequenceRenderer) ToSink(frame image.Image) error {
	path := filepath.Join(r.dir, fmt.Sprintf("frame_%06d.png", len(r.written)))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	r.written = append(r.written, path)

	if err := png.Encode(f, frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// ProcessAudio copies the audio file into the output directory.
func (r *ImageSequenceRenderer) ProcessAudio(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dstPath := filepath.Join(r.dir, filepath.Base(path))
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	r.written = append(r.written, dstPath)
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy audio %s: %w", path, err)
	}
	return dst.Close()
}

// Finalize has nothing to flush; every frame is a complete file.
func (r *ImageSequenceRenderer) Finalize() error { return nil }

// ProcessAbort removes every file written by this renderer, and the
// subtitle file beside the output directory.
func (r *ImageSequenceRenderer) ProcessAbort() error {
	var errs []error
	for _, path := range r.written {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	r.written = nil
	if err := removeSubtitles(r.dir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// OutputPath returns the output directory.
func (r *ImageSequenceRenderer) OutputPath() string { return r.dir }

// Files returns the paths written so far.
func (r *ImageSequenceRenderer) Files() []string {
	return append([]string(nil), r.written...)
}
