package effects

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// Heatmap constants.
const (
	HeatmapPoints = 500
	HeatmapWidth  = 300
	HeatmapHeight = 150
	HeatmapRadius = 20
)

// Heatmap accumulates recent fingertip positions into a density panel.
type Heatmap struct {
	points [][2]float64 // normalized, oldest first
}

// NewHeatmap returns an empty heatmap.
func NewHeatmap() *Heatmap {
	return &Heatmap{points: make([][2]float64, 0, HeatmapPoints)}
}

// Add records a normalized position, evicting the oldest past HeatmapPoints.
func (h *Heatmap) Add(x, y float64) {
	if len(h.points) == HeatmapPoints {
		copy(h.points, h.points[1:])
		h.points = h.points[:HeatmapPoints-1]
	}
	h.points = append(h.points, [2]float64{x, y})
}

// Len returns the number of stored points.
func (h *Heatmap) Len() int {
	return len(h.points)
}

// Clear drops every point.
func (h *Heatmap) Clear() {
	h.points = h.points[:0]
}

// Intensity returns the summed blob coverage at panel pixel (px, py). Each
// point contributes 1 at its center falling linearly to 0 at HeatmapRadius.
func (h *Heatmap) Intensity(px, py int) float64 {
	var sum float64
	for _, p := range h.points {
		d := math.Hypot(p[0]*HeatmapWidth-float64(px), p[1]*HeatmapHeight-float64(py))
		if d < HeatmapRadius {
			sum += 1 - d/HeatmapRadius
		}
	}
	return sum
}

// heatColor maps coverage to BGRA: red at the core, yellow at the rim,
// transparent outside.
func heatColor(v float64) [4]uint8 {
	if v <= 0 {
		return [4]uint8{}
	}
	v = math.Min(v, 1)
	// hue runs from yellow (rim) to red (core)
	g := uint8(255 * (1 - v))
	return [4]uint8{0, g, 255, uint8(255 * math.Min(1, v*1.5))}
}

// Render draws the heatmap into a HeatmapWidth×HeatmapHeight CV_8UC4 panel.
func (h *Heatmap) Render(panel *gocv.Mat) error {
	if panel.Cols() != HeatmapWidth || panel.Rows() != HeatmapHeight || panel.Channels() != 4 {
		return fmt.Errorf("heatmap: want %dx%d BGRA panel", HeatmapWidth, HeatmapHeight)
	}
	data, err := panel.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("heatmap: %w", err)
	}

	grid := make([]float64, HeatmapWidth*HeatmapHeight)
	for _, p := range h.points {
		cx, cy := p[0]*HeatmapWidth, p[1]*HeatmapHeight
		x0, x1 := max(int(cx)-HeatmapRadius, 0), min(int(cx)+HeatmapRadius, HeatmapWidth-1)
		y0, y1 := max(int(cy)-HeatmapRadius, 0), min(int(cy)+HeatmapRadius, HeatmapHeight-1)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if d := math.Hypot(cx-float64(x), cy-float64(y)); d < HeatmapRadius {
					grid[y*HeatmapWidth+x] += 1 - d/HeatmapRadius
				}
			}
		}
	}

	for i, v := range grid {
		c := heatColor(v)
		copy(data[i*4:i*4+4], c[:])
	}
	return nil
}
