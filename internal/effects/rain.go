package effects

import (
	"image"
	"math/rand/v2"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/particle"
)

// Matrix rain constants.
const (
	RainCell      = 14
	RainInterval  = 50 * time.Millisecond
	RainFade      = 0.05
	RainResetProb = 0.025
)

const rainGlyphs = "01ABCDEFGHIJKLMNOPQRSTUVWXYZ$+-*/=%<>"

// MatrixRain drops glyph columns down a BGRA layer.
type MatrixRain struct {
	width, height int
	drops         []int
	rng           *rand.Rand
	last          time.Time
}

// NewMatrixRain creates one column per RainCell pixels of width.
func NewMatrixRain(width, height int, rng *rand.Rand) *MatrixRain {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &MatrixRain{
		width:  width,
		height: height,
		drops:  make([]int, max(width/RainCell, 1)),
		rng:    rng,
	}
}

// Columns returns the number of glyph columns.
func (m *MatrixRain) Columns() int {
	return len(m.drops)
}

// Advance moves every column one cell down. A column past the bottom
// restarts at the top with probability RainResetProb.
func (m *MatrixRain) Advance() {
	for i := range m.drops {
		if m.drops[i]*RainCell > m.height && m.rng.Float64() < RainResetProb {
			m.drops[i] = 0
		}
		m.drops[i]++
	}
}

// Update fades layer and draws the next row of glyphs, at most once per
// RainInterval. It reports whether it drew.
func (m *MatrixRain) Update(layer *gocv.Mat, now time.Time) (bool, error) {
	if !m.last.IsZero() && now.Sub(m.last) < RainInterval {
		return false, nil
	}
	m.last = now

	if err := particle.Fade(layer, RainFade); err != nil {
		return false, err
	}
	for i, d := range m.drops {
		g := rainGlyphs[m.rng.IntN(len(rainGlyphs))]
		org := image.Pt(i*RainCell, d*RainCell)
		gocv.PutText(layer, string(g), org, gocv.FontHersheyPlain, 0.9, Green, 1)
	}
	m.Advance()
	return true, nil
}
