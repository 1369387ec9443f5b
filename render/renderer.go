package render

import (
	"context"
	"image"
)

// Renderer is the output collaborator of a render job: it crops and scales
// source images into frames and writes finalized frames to the physical
// output (a video container, an image sequence, ...).
//
// ProcessCropAndResize is called concurrently from worker goroutines and must
// be safe for concurrent use. Every other method is called from one goroutine
// at a time: ToSink only from whichever worker currently drains the reorder
// buffer, the lifecycle methods only from the job's own goroutine.
type Renderer interface {
	// Prepare opens the output. It is called once, after the task queue has
	// been built and before any frame is produced.
	Prepare(ctx context.Context) error

	// ProcessCropAndResize cuts rect out of img and scales it to resolution.
	ProcessCropAndResize(img image.Image, rect Rect, resolution image.Point) (image.Image, error)

	// FinalizeHandler returns the post-processing stage for this output.
	FinalizeHandler() FinalizeHandler

	// ToSink writes one finalized frame.
	ToSink(frame image.Image) error

	// ProcessAudio attaches an audio file to the output.
	ProcessAudio(path string) error

	// Finalize flushes and closes the output. It is always called, also after
	// an abort.
	Finalize() error

	// ProcessAbort rolls back partially written output.
	ProcessAbort() error

	// OutputPath reports where the output is written.
	OutputPath() string
}

// Subtitler writes a subtitle file for a slideshow. Subtitle formats are not
// part of the pipeline; the engine only decides when to call it.
type Subtitler interface {
	WriteSubtitles(ctx context.Context, outputPath string, pictures []Picture, scaleFactor float64) error
}

// ProgressReporter receives progress and is polled for aborts.
type ProgressReporter interface {
	SetMaxProgress(n int)
	Step()
	Steps(k int)
	SetInfo(text string)
	IsAborted() bool
	Done()
}
