package render

import (
	"fmt"
	"image"
	"image/draw"
)

// TransitionKind selects how two frames are mixed inside a transition window.
type TransitionKind int

const (
	// TransitionFade cross-fades the two frames pixel by pixel.
	TransitionFade TransitionKind = iota

	// TransitionRoll slides the incoming frame in from the right edge.
	TransitionRoll
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionFade:
		return "fade"
	case TransitionRoll:
		return "roll"
	default:
		return fmt.Sprintf("transition(%d)", int(k))
	}
}

// BlendRatio returns the mix ratio for step i of a count-frame transition
// window: i/count. It is 0 at i=0 and stays below 1 for i=count-1.
func BlendRatio(i, count int) float64 {
	if count <= 0 {
		return 0
	}
	return float64(i) / float64(count)
}

// TransitionPair is one step of a transition window.
type TransitionPair struct {
	From  PathFrame
	To    PathFrame
	Ratio float64
}

// PairTransition pairs the tail of one picture's path with the head of the
// next picture's path, index for index. Unequal lengths are an invariant
// violation and produce a StructuralError wrapping ErrTransitionMismatch.
func PairTransition(from, to []PathFrame) ([]TransitionPair, error) {
	if len(from) != len(to) {
		return nil, &StructuralError{
			Op:    "PairTransition",
			Cause: fmt.Errorf("%w: %d vs %d frames", ErrTransitionMismatch, len(from), len(to)),
		}
	}

	count := len(from)
	pairs := make([]TransitionPair, count)
	for i := range from {
		pairs[i] = TransitionPair{
			From:  from[i],
			To:    to[i],
			Ratio: BlendRatio(i, count),
		}
	}
	return pairs, nil
}

// Blend mixes two equally sized frames with the given kind and ratio. A ratio
// of 0 yields a copy of a.
func Blend(kind TransitionKind, a, b image.Image, ratio float64) (image.Image, error) {
	if a.Bounds().Size() != b.Bounds().Size() {
		return nil, &StructuralError{
			Op:    "Blend",
			Cause: fmt.Errorf("frame sizes differ: %v vs %v", a.Bounds().Size(), b.Bounds().Size()),
		}
	}
	switch kind {
	case TransitionRoll:
		return roll(a, b, ratio), nil
	default:
		return fade(a, b, ratio), nil
	}
}

// toRGBA returns img as a tightly packed *image.RGBA anchored at the origin,
// converting only when necessary.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

func fade(a, b image.Image, ratio float64) *image.RGBA {
	ra, rb := toRGBA(a), toRGBA(b)
	out := image.NewRGBA(ra.Rect)

	// 16-bit fixed-point weights: fine enough that windows of thousands of
	// frames still change from step to step.
	wb := uint32(ratio*65536 + 0.5)
	if wb > 65536 {
		wb = 65536
	}
	wa := 65536 - wb
	for i := range out.Pix {
		out.Pix[i] = uint8((uint32(ra.Pix[i])*wa + uint32(rb.Pix[i])*wb) >> 16)
	}
	return out
}

// roll shifts a to the left by ratio*width and fills the uncovered right
// strip with the leading part of b.
func roll(a, b image.Image, ratio float64) *image.RGBA {
	ra, rb := toRGBA(a), toRGBA(b)
	w, h := ra.Rect.Dx(), ra.Rect.Dy()
	delta := int(float64(w) * ratio)

	out := image.NewRGBA(ra.Rect)
	draw.Draw(out, image.Rect(0, 0, w-delta, h), ra, image.Pt(delta, 0), draw.Src)
	draw.Draw(out, image.Rect(w-delta, 0, w, h), rb, image.Pt(0, 0), draw.Src)
	return out
}
