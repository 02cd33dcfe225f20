package effects

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/detector"
)

// 3D projection panel constants.
const (
	ProjectionWidth  = 350
	ProjectionHeight = 200
	ProjectionScale  = 150
)

// Projected is a hand landmark placed in the projection panel.
type Projected struct {
	Point  image.Point
	Radius int
	Tip    bool
}

// Project centres the hand on its landmark mean and scales it into the
// panel. Joint radius shrinks with depth: 4 - z, at least 1.
func Project(hand *detector.Hand) [detector.NumLandmarks]Projected {
	var cx, cy float64
	for _, p := range hand.Points {
		cx += p.X
		cy += p.Y
	}
	cx /= detector.NumLandmarks
	cy /= detector.NumLandmarks

	tips := make(map[int]bool, len(detector.FingerTips))
	for _, t := range detector.FingerTips {
		tips[t] = true
	}

	var out [detector.NumLandmarks]Projected
	for i, p := range hand.Points {
		out[i] = Projected{
			Point: image.Pt(
				ProjectionWidth/2+int(math.Round((p.X-cx)*ProjectionScale)),
				ProjectionHeight/2+int(math.Round((p.Y-cy)*ProjectionScale)),
			),
			Radius: max(1, int(math.Round(4-p.Z))),
			Tip:    tips[i],
		}
	}
	return out
}

// DrawProjection renders the projected skeleton into a BGR panel.
func DrawProjection(panel *gocv.Mat, hand *detector.Hand) {
	pts := Project(hand)
	for _, c := range detector.HandConnections {
		gocv.Line(panel, pts[c[0]].Point, pts[c[1]].Point, Cyan, 2)
	}
	for _, p := range pts {
		col := Cyan
		if p.Tip {
			col = Magenta
		}
		gocv.Circle(panel, p.Point, p.Radius, col, -1)
	}
}
