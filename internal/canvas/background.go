package canvas

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Background is the backdrop shown under the drawing in the display frame.
// It is never written to the surface itself.
type Background string

const (
	BackgroundTransparent Background = "transparent"
	BackgroundBlack       Background = "black"
	BackgroundWhite       Background = "white"
	BackgroundGrid        Background = "grid"
)

// GridSpacing is the distance between grid lines in pixels.
const GridSpacing = 20

var (
	gridFill = color.RGBA{R: 0x1a, G: 0x1a, B: 0x2e, A: 0xff}
	gridLine = color.RGBA{R: 0x2a, G: 0x2a, B: 0x48, A: 0xff}
)

// ParseBackground validates a background name.
func ParseBackground(s string) (Background, error) {
	switch b := Background(s); b {
	case BackgroundTransparent, BackgroundBlack, BackgroundWhite, BackgroundGrid:
		return b, nil
	}
	return "", fmt.Errorf("unknown background %q", s)
}

// Compose builds a BGR display frame of width×height: the backdrop (the camera
// frame when transparent) with each BGRA layer composited over it in order.
// The returned Mat is owned by the caller.
func Compose(frame *gocv.Mat, bg Background, width, height int, layers ...*gocv.Mat) (gocv.Mat, error) {
	base := NewLayer(width, height)
	defer base.Close()

	switch bg {
	case BackgroundBlack:
		base.SetTo(gocv.NewScalar(0, 0, 0, 255))
	case BackgroundWhite:
		base.SetTo(gocv.NewScalar(255, 255, 255, 255))
	case BackgroundGrid:
		base.SetTo(gocv.NewScalar(float64(gridFill.B), float64(gridFill.G), float64(gridFill.R), 255))
		for x := 0; x < width; x += GridSpacing {
			gocv.Line(&base, image.Pt(x, 0), image.Pt(x, height), gridLine, 1)
		}
		for y := 0; y < height; y += GridSpacing {
			gocv.Line(&base, image.Pt(0, y), image.Pt(width, y), gridLine, 1)
		}
	default:
		if frame == nil || frame.Empty() {
			base.SetTo(gocv.NewScalar(0, 0, 0, 255))
			break
		}
		src := *frame
		if frame.Cols() != width || frame.Rows() != height {
			resized := gocv.NewMat()
			defer resized.Close()
			gocv.Resize(*frame, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
			src = resized
		}
		if src.Channels() == 4 {
			src.CopyTo(&base)
		} else {
			gocv.CvtColor(src, &base, gocv.ColorBGRToBGRA)
		}
	}

	for _, l := range layers {
		if l == nil {
			continue
		}
		if err := Composite(&base, l, OpSourceOver, 1); err != nil {
			return gocv.NewMat(), err
		}
	}

	out := gocv.NewMat()
	gocv.CvtColor(base, &out, gocv.ColorBGRAToBGR)
	return out, nil
}
