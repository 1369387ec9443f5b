package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/dshills/filmstrip-go/render"
)

// EncodedFrame is a frame together with its compressed bytes. Renderers that
// receive an EncodedFrame write Data as is.
type EncodedFrame struct {
	image.Image
	Data []byte
}

// JPEGEncoder compresses every frame as soon as a worker has computed it, so
// the expensive encoding runs in parallel and the sink only copies bytes.
type JPEGEncoder struct {
	Quality int
}

func (JPEGEncoder) Mode() render.FinalizeMode { return render.FinalizeImmediate }

// ProcessFinalize encodes frame.
func (e JPEGEncoder) ProcessFinalize(frame image.Image) (image.Image, error) {
	if ef, ok := frame.(*EncodedFrame); ok {
		return ef, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return &EncodedFrame{Image: frame, Data: buf.Bytes()}, nil
}

// TemporalSmoother mixes every frame with its predecessor. It needs frames in
// output order and therefore runs in smart mode.
//
// Weight is the share of the previous frame in the output, between 0 (off)
// and 1.
type TemporalSmoother struct {
	Weight float64

	prev image.Image
}

func (s *TemporalSmoother) Mode() render.FinalizeMode { return render.FinalizeSmart }

// ProcessFinalize returns frame blended with the previous input frame.
func (s *TemporalSmoother) ProcessFinalize(frame image.Image) (image.Image, error) {
	prev := s.prev
	s.prev = frame
	if prev == nil || s.Weight <= 0 || prev.Bounds().Size() != frame.Bounds().Size() {
		return frame, nil
	}
	return render.Blend(render.TransitionFade, frame, prev, min(s.Weight, 1))
}
