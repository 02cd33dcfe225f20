package effects

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/gesture"
)

// Velocity chart panel constants.
const (
	ChartWidth  = 300
	ChartHeight = 120
	// ChartFloor is the minimum full-scale velocity so quiet hands stay low.
	ChartFloor = 500.0
)

// Series is one line of the velocity chart.
type Series struct {
	Label  string
	Values []float64
	Color  color.RGBA
}

// ChartPoints maps values onto a width×height panel, one slot per
// gesture.ChartWindow sample, right-aligned so the newest is at the edge.
func ChartPoints(values []float64, width, height int, fullScale float64) []image.Point {
	if len(values) == 0 || fullScale <= 0 {
		return nil
	}
	step := float64(width-1) / float64(gesture.ChartWindow-1)
	offset := gesture.ChartWindow - len(values)
	pts := make([]image.Point, len(values))
	for i, v := range values {
		y := float64(height-1) * (1 - min(v, fullScale)/fullScale)
		pts[i] = image.Pt(int(float64(i+offset)*step), int(y))
	}
	return pts
}

// DrawVelocityChart renders the series into a BGR panel scaled to the
// largest value or ChartFloor.
func DrawVelocityChart(panel *gocv.Mat, series ...Series) {
	full := ChartFloor
	for _, s := range series {
		for _, v := range s.Values {
			full = max(full, v)
		}
	}

	for i, s := range series {
		pts := ChartPoints(s.Values, panel.Cols(), panel.Rows(), full)
		if len(pts) > 1 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
			gocv.Polylines(panel, pv, false, s.Color, 2)
			pv.Close()
		}
		gocv.PutText(panel, s.Label, image.Pt(6+i*70, 14), gocv.FontHersheyPlain, 1, s.Color, 1)
	}
}
