package effects

import (
	"image"
	"math"
	"math/rand/v2"

	"gocv.io/x/gocv"
)

// Background field constants.
const (
	FieldDots     = 50
	FieldLinkDist = 150.0
)

type dot struct {
	x, y, vx, vy float64
}

// BackgroundField is a set of slowly drifting dots linked to their near
// neighbours.
type BackgroundField struct {
	width, height float64
	dots          []dot
}

// NewBackgroundField scatters FieldDots dots over width×height.
func NewBackgroundField(width, height int, rng *rand.Rand) *BackgroundField {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	f := &BackgroundField{width: float64(width), height: float64(height), dots: make([]dot, FieldDots)}
	for i := range f.dots {
		f.dots[i] = dot{
			x:  rng.Float64() * f.width,
			y:  rng.Float64() * f.height,
			vx: (rng.Float64() - 0.5) * 0.5,
			vy: (rng.Float64() - 0.5) * 0.5,
		}
	}
	return f
}

// Step moves the dots, reflecting them at the edges.
func (f *BackgroundField) Step() {
	for i := range f.dots {
		d := &f.dots[i]
		d.x += d.vx
		d.y += d.vy
		if d.x < 0 || d.x > f.width {
			d.vx = -d.vx
			d.x = math.Max(0, math.Min(f.width, d.x))
		}
		if d.y < 0 || d.y > f.height {
			d.vy = -d.vy
			d.y = math.Max(0, math.Min(f.height, d.y))
		}
	}
}

// LinkAlpha returns the opacity of a link between dots d apart, zero at or
// beyond FieldLinkDist.
func LinkAlpha(d float64) float64 {
	if d >= FieldLinkDist {
		return 0
	}
	return 1 - d/FieldLinkDist
}

// Draw renders dots and links onto a BGRA layer.
func (f *BackgroundField) Draw(layer *gocv.Mat) {
	for i := range f.dots {
		a := f.dots[i]
		pa := image.Pt(int(a.x), int(a.y))
		for j := i + 1; j < len(f.dots); j++ {
			b := f.dots[j]
			if alpha := LinkAlpha(math.Hypot(a.x-b.x, a.y-b.y)); alpha > 0 {
				gocv.Line(layer, pa, image.Pt(int(b.x), int(b.y)), WithAlpha(Cyan, alpha*0.3), 1)
			}
		}
		gocv.Circle(layer, pa, 2, WithAlpha(Cyan, 0.6), -1)
	}
}

// Positions returns the current dot positions.
func (f *BackgroundField) Positions() []image.Point {
	out := make([]image.Point, len(f.dots))
	for i, d := range f.dots {
		out[i] = image.Pt(int(d.x), int(d.y))
	}
	return out
}
