package particle

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Style controls how particles are drawn onto a BGRA layer.
type Style struct {
	InnerRatio  float64 // inner star radius relative to Size
	SquaredFade bool    // alpha = Life² instead of Life
	GlowAbove   float64 // draw a halo while Life > GlowAbove; negative disables glow
	GlowScale   float64 // halo radius relative to Size
}

// PaintStyle fades quadratically and only glows while fresh.
var PaintStyle = Style{InnerRatio: 0.5, SquaredFade: true, GlowAbove: 0.7, GlowScale: 2.5}

// DashboardStyle fades linearly and always glows.
var DashboardStyle = Style{InnerRatio: 0.5, GlowAbove: 0, GlowScale: 2.5}

// Alpha returns the opacity of p under style s, in [0,1].
func (s Style) Alpha(p *Particle) float64 {
	life := math.Max(0, math.Min(1, p.Life))
	if s.SquaredFade {
		return life * life
	}
	return life
}

// Glows reports whether p is drawn with a halo.
func (s Style) Glows(p *Particle) bool {
	return s.GlowAbove >= 0 && p.Life > s.GlowAbove
}

// StarPoints returns the 10 vertices of a 5-pointed star centred on p and
// rotated by its accumulated rotation.
func StarPoints(p *Particle, innerRatio float64) []image.Point {
	pts := make([]image.Point, 0, 10)
	for i := 0; i < 10; i++ {
		r := p.Size
		if i%2 == 1 {
			r *= innerRatio
		}
		angle := p.Rotation + float64(i)*math.Pi/5
		pts = append(pts, image.Point{
			X: int(math.Round(p.X + math.Cos(angle)*r)),
			Y: int(math.Round(p.Y + math.Sin(angle)*r)),
		})
	}
	return pts
}

func withAlpha(c color.RGBA, alpha float64) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(alpha * 255))}
}

// Draw renders p onto layer, a CV_8UC4 Mat. Pixels are replaced, not blended;
// the layer is composited over the frame afterwards.
func Draw(layer *gocv.Mat, p *Particle, s Style) {
	if p.IsDead() {
		return
	}
	alpha := s.Alpha(p)
	center := image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}

	if s.Glows(p) {
		radius := int(math.Ceil(p.Size * s.GlowScale))
		gocv.Circle(layer, center, radius, withAlpha(p.Color, alpha*0.35), -1)
	}

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{StarPoints(p, s.InnerRatio)})
	defer pv.Close()
	gocv.FillPoly(layer, pv, withAlpha(p.Color, alpha))
}

// Fade scales the alpha channel of a CV_8UC4 layer by (1 - amount), leaving
// a decaying trail instead of clearing it.
func Fade(layer *gocv.Mat, amount float64) error {
	if layer.Channels() != 4 {
		return fmt.Errorf("fade: want 4 channels, got %d", layer.Channels())
	}
	data, err := layer.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("fade: %w", err)
	}
	keep := 1 - math.Max(0, math.Min(1, amount))
	for i := 3; i < len(data); i += 4 {
		data[i] = uint8(float64(data[i]) * keep)
	}
	return nil
}
