package render

import "image"

// FinalizeMode selects where a job applies post-processing.
type FinalizeMode int

const (
	// FinalizeImmediate finalizes each primary result inside the result
	// cache, on the worker that computed it.
	FinalizeImmediate FinalizeMode = iota

	// FinalizeSmart defers finalization to the ordered delivery path, where
	// frames arrive strictly in sequence and the handler can rely on the
	// previous frames.
	FinalizeSmart
)

func (m FinalizeMode) String() string {
	if m == FinalizeSmart {
		return "smart"
	}
	return "immediate"
}

// FinalizeHandler post-processes primary frame results. Sub-task results are
// never passed to it.
//
// In FinalizeImmediate mode ProcessFinalize is called concurrently from
// workers. In FinalizeSmart mode it is called in ascending sequence order from
// one goroutine at a time.
type FinalizeHandler interface {
	Mode() FinalizeMode
	ProcessFinalize(frame image.Image) (image.Image, error)
}

// NopFinalizer passes frames through unchanged.
type NopFinalizer struct {
	FinalizeMode FinalizeMode
}

func (n NopFinalizer) Mode() FinalizeMode { return n.FinalizeMode }

func (NopFinalizer) ProcessFinalize(frame image.Image) (image.Image, error) {
	return frame, nil
}

// FinalizeFunc adapts a function to a FinalizeHandler with the given mode.
type FinalizeFunc struct {
	FinalizeMode FinalizeMode
	Fn           func(image.Image) (image.Image, error)
}

func (f FinalizeFunc) Mode() FinalizeMode { return f.FinalizeMode }

func (f FinalizeFunc) ProcessFinalize(frame image.Image) (image.Image, error) {
	return f.Fn(frame)
}
