// Package sink provides concrete renderers for the render pipeline: an
// MJPEG/AVI video writer, a numbered image sequence and an in-memory
// collector, together with their crop-and-scale and finalize stages.
package sink

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/dshills/filmstrip-go/render"
)

// CropAndResize cuts rect out of src and scales it to size. rect may have
// fractional coordinates: the crop is expressed as an affine transform, so a
// slow pan moves by sub-pixel steps instead of jumping from pixel to pixel.
// Parts of rect outside src stay transparent.
//
// Draft mode trades quality for speed (bilinear instead of Catmull-Rom).
func CropAndResize(src image.Image, rect render.Rect, size image.Point, draft bool) (image.Image, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid output size %v", size)
	}
	if rect.W <= 0 || rect.H <= 0 {
		return nil, fmt.Errorf("invalid crop rectangle %s", rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))

	sx := float64(size.X) / rect.W
	sy := float64(size.Y) / rect.H
	s2d := f64.Aff3{
		sx, 0, -rect.X * sx,
		0, sy, -rect.Y * sy,
	}

	var interp xdraw.Interpolator = xdraw.CatmullRom
	if draft {
		interp = xdraw.ApproxBiLinear
	}
	interp.Transform(dst, s2d, src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}
