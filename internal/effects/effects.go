// Package effects renders the dashboard visualizations and the landmark
// overlays: matrix rain, the background particle field, the fingertip
// heatmap, the 3D hand projection, the velocity chart and skeletons.
package effects

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/detector"
)

// Palette.
var (
	Cyan    = color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff}
	Magenta = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}
	Green   = color.RGBA{R: 0x00, G: 0xff, B: 0x41, A: 0xff}
	Yellow  = color.RGBA{R: 0xff, G: 0xff, B: 0x00, A: 0xff}
	Red     = color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
	White   = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Panel   = color.RGBA{R: 0x0a, G: 0x0a, B: 0x1a, A: 0xff}
)

// ToPixel maps a normalized landmark into a width×height image.
func ToPixel(l detector.Landmark, width, height int) image.Point {
	return image.Point{X: int(l.X * float64(width)), Y: int(l.Y * float64(height))}
}

// WithAlpha returns c with alpha a in [0,1].
func WithAlpha(c color.RGBA, a float64) color.RGBA {
	a = max(0, min(1, a))
	c.A = uint8(a * 255)
	return c
}

// NewPanel returns a width×height BGR Mat filled with the panel color.
func NewPanel(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(Panel.B), float64(Panel.G), float64(Panel.R), 0), height, width, gocv.MatTypeCV8UC3)
}

// Place copies panel into dst with its top-left corner at at. The panel is
// clipped to dst and must have the same type.
func Place(dst *gocv.Mat, panel gocv.Mat, at image.Point) error {
	if dst.Type() != panel.Type() {
		return fmt.Errorf("place: type mismatch %v vs %v", dst.Type(), panel.Type())
	}
	r := image.Rect(at.X, at.Y, at.X+panel.Cols(), at.Y+panel.Rows()).Intersect(image.Rect(0, 0, dst.Cols(), dst.Rows()))
	if r.Empty() {
		return nil
	}
	src := panel.Region(image.Rect(r.Min.X-at.X, r.Min.Y-at.Y, r.Max.X-at.X, r.Max.Y-at.Y))
	defer src.Close()
	roi := dst.Region(r)
	defer roi.Close()
	src.CopyTo(&roi)
	return nil
}
