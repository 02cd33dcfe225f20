package canvas

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// Op is a compositing operator.
type Op int

const (
	// OpSourceOver paints the source over the destination.
	OpSourceOver Op = iota
	// OpDestinationOut removes destination coverage where the source is opaque.
	OpDestinationOut
)

// NewLayer returns a fully transparent CV_8UC4 Mat. The caller owns it.
func NewLayer(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC4)
}

// ClearLayer makes every pixel of layer transparent.
func ClearLayer(layer *gocv.Mat) {
	layer.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// Composite blends src into dst with op. Both must be CV_8UC4 Mats of equal
// size holding straight (non-premultiplied) alpha. opacity scales src alpha.
func Composite(dst, src *gocv.Mat, op Op, opacity float64) error {
	if dst.Type() != gocv.MatTypeCV8UC4 || src.Type() != gocv.MatTypeCV8UC4 {
		return fmt.Errorf("composite: want CV_8UC4 layers, got %v and %v", dst.Type(), src.Type())
	}
	if dst.Rows() != src.Rows() || dst.Cols() != src.Cols() {
		return fmt.Errorf("composite: size mismatch %dx%d vs %dx%d", dst.Cols(), dst.Rows(), src.Cols(), src.Rows())
	}
	d, err := dst.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	s, err := src.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	compositePixels(d, s, op, opacity)
	return nil
}

// compositePixels applies op over two BGRA byte slices of equal length.
func compositePixels(dst, src []uint8, op Op, opacity float64) {
	opacity = math.Max(0, math.Min(1, opacity))
	n := min(len(dst), len(src))

	for i := 0; i+3 < n; i += 4 {
		sa := float64(src[i+3]) / 255 * opacity
		if sa == 0 {
			continue
		}
		da := float64(dst[i+3]) / 255

		switch op {
		case OpDestinationOut:
			dst[i+3] = toByte(da * (1 - sa) * 255)
		default:
			oa := sa + da*(1-sa)
			for c := 0; c < 3; c++ {
				v := (float64(src[i+c])*sa + float64(dst[i+c])*da*(1-sa)) / oa
				dst[i+c] = toByte(v)
			}
			dst[i+3] = toByte(oa * 255)
		}
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
