package render

import (
	"fmt"
	"math"
)

// Rect is a crop rectangle in source picture coordinates. X and Y address the
// top-left corner; W and H are the rectangle's size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the rectangle's center point.
func (r Rect) Center() (cx, cy float64) {
	return r.X + r.W/2.0, r.Y + r.H/2.0
}

// String renders the rectangle rounded to 1/100 pixel. The rounding makes it
// usable inside task keys: two rectangles that are equal at that precision
// produce the same crop.
func (r Rect) String() string {
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", r.X, r.Y, r.W, r.H)
}

// PathFrame is one interpolated crop rectangle of a pan-and-zoom path,
// together with the picture it applies to.
type PathFrame struct {
	Picture int
	Rect    Rect
}

// ComputePath interpolates n crop rectangles from start to target.
//
// The rectangle's center and size are interpolated linearly over steps
// 0..n-1, so step 0 is start and step n-1 is target. n must be at least 2.
func ComputePath(start, target Rect, n int) ([]Rect, error) {
	if n < 2 {
		return nil, &RenderError{
			Message: fmt.Sprintf("path needs at least 2 frames, got %d", n),
			Code:    "PATH_TOO_SHORT",
		}
	}

	cx1, cy1 := start.Center()
	cx2, cy2 := target.Center()

	steps := float64(n - 1)
	dx := (cx2 - cx1) / steps
	dy := (cy2 - cy1) / steps
	dw := (target.W - start.W) / steps
	dh := (target.H - start.H) / steps

	path := make([]Rect, n)
	for step := 0; step < n; step++ {
		s := float64(step)
		px := cx1 + s*dx
		py := cy1 + s*dy
		w := start.W + s*dw
		h := start.H + s*dh

		path[step] = Rect{
			X: px - w/2.0,
			Y: py - h/2.0,
			W: w,
			H: h,
		}
	}
	// Pin the last step so accumulated float error never drifts off target.
	path[n-1] = target
	return path, nil
}

// TransitionFrames returns the number of frames in a transition window.
func TransitionFrames(transitionSecs, framerate float64) int {
	if transitionSecs <= 0 || framerate <= 0 {
		return 0
	}
	return int(transitionSecs * framerate)
}

// MinPictureFrames is the frame-count floor applied to every picture. It keeps
// n >= 2 for interpolation and leaves room for a full transition window at
// both ends of a picture.
func MinPictureFrames(transFrames int) int {
	return max(2, 2*transFrames)
}

// PictureFrames computes the frame count of one picture:
// int(duration * framerate * scaleFactor) + transFrames, raised to
// MinPictureFrames.
func PictureFrames(durationSecs, framerate, scaleFactor float64, transFrames int) int {
	n := int(durationSecs*framerate*scaleFactor) + transFrames
	return max(n, MinPictureFrames(transFrames))
}

// ScaleFactor returns the global duration multiplier that stretches or
// shrinks the pictures' total duration to targetSecs. The transition window
// is subtracted from the target first and the result is never less than one
// second per picture. A non-positive target yields 1.
func ScaleFactor(durations []float64, targetSecs, transitionSecs float64) float64 {
	if targetSecs <= 0 || len(durations) == 0 {
		return 1
	}
	target := math.Max(targetSecs-transitionSecs, float64(len(durations)))

	var total float64
	for _, d := range durations {
		total += d
	}
	if total <= 0 {
		return 1
	}
	return target / total
}
