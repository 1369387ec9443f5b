package render

import (
	"fmt"
	"image"
)

// VideoNorm is the television norm an output profile targets.
type VideoNorm int

const (
	// VideoNormPAL renders at 25 frames per second.
	VideoNormPAL VideoNorm = iota

	// VideoNormNTSC renders at 29.97 frames per second.
	VideoNormNTSC
)

// Framerate returns the norm's frames per second.
func (n VideoNorm) Framerate() float64 {
	if n == VideoNormNTSC {
		return 30000.0 / 1001.0
	}
	return 25.0
}

func (n VideoNorm) String() string {
	if n == VideoNormNTSC {
		return "NTSC"
	}
	return "PAL"
}

// Profile is the read-only output configuration shared by every task of a
// job.
type Profile struct {
	Name       string
	Resolution image.Point
	Framerate  float64
	VideoNorm  VideoNorm
	Aspect     string
}

// NewProfile creates a profile whose framerate follows the video norm.
func NewProfile(name string, resolution image.Point, norm VideoNorm) Profile {
	return Profile{
		Name:       name,
		Resolution: resolution,
		Framerate:  norm.Framerate(),
		VideoNorm:  norm,
		Aspect:     aspectOf(resolution),
	}
}

// Validate checks that the profile can drive a render.
func (p Profile) Validate() error {
	if p.Resolution.X <= 0 || p.Resolution.Y <= 0 {
		return &RenderError{
			Message: fmt.Sprintf("invalid resolution %dx%d", p.Resolution.X, p.Resolution.Y),
			Code:    "INVALID_PROFILE",
		}
	}
	if p.Framerate <= 0 {
		return &RenderError{
			Message: fmt.Sprintf("invalid framerate %v", p.Framerate),
			Code:    "INVALID_PROFILE",
		}
	}
	return nil
}

func aspectOf(res image.Point) string {
	if res.X <= 0 || res.Y <= 0 {
		return ""
	}
	a, b := res.X, res.Y
	for b != 0 {
		a, b = b, a%b
	}
	return fmt.Sprintf("%d:%d", res.X/a, res.Y/a)
}
