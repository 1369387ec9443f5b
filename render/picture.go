package render

import (
	"fmt"
	"image"
)

// Picture is one still picture of a slideshow. Pictures are immutable for the
// duration of a render pass.
type Picture interface {
	// StartRect is the crop rectangle the camera move starts at.
	StartRect() Rect

	// TargetRect is the crop rectangle the camera move ends at.
	TargetRect() Rect

	// Duration is the picture's display time in seconds.
	Duration() float64

	// Comment is an optional caption; empty when the picture has none.
	Comment() string

	// Image returns the decoded source image. Decoding is the caller's
	// concern; the pipeline only reads the returned image.
	Image() (image.Image, error)
}

// StillPicture is a Picture backed by an already decoded image.
type StillPicture struct {
	Start    Rect
	Target   Rect
	Seconds  float64
	Caption  string
	Source   image.Image
	SourceID string
}

func (p *StillPicture) StartRect() Rect   { return p.Start }
func (p *StillPicture) TargetRect() Rect  { return p.Target }
func (p *StillPicture) Duration() float64 { return p.Seconds }
func (p *StillPicture) Comment() string   { return p.Caption }

// Image returns the picture's source image.
func (p *StillPicture) Image() (image.Image, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("picture %q has no image", p.SourceID)
	}
	return p.Source, nil
}

// FullFrame returns the rectangle covering all of img.
func FullFrame(img image.Image) Rect {
	b := img.Bounds()
	return Rect{X: float64(b.Min.X), Y: float64(b.Min.Y), W: float64(b.Dx()), H: float64(b.Dy())}
}
