package canvas

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// RainbowStep is the hue advance per sample in rainbow mode, in degrees.
const RainbowStep = 2.0

// ParseHex parses "#rrggbb" or "#rgb" into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Hex formats c as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// HSL converts hue (degrees), saturation and lightness (0..1) to an opaque color.
func HSL(h, s, l float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{R: toByte((r + m) * 255), G: toByte((g + m) * 255), B: toByte((b + m) * 255), A: 255}
}

// ColorPicker yields the stroke color for each sample: a fixed color, or a
// hue cycling by RainbowStep when rainbow mode is on.
type ColorPicker struct {
	Base    color.RGBA
	Rainbow bool
	hue     float64
}

// Next returns the color for the next sample.
func (p *ColorPicker) Next() color.RGBA {
	if !p.Rainbow {
		return p.Base
	}
	c := HSL(p.hue, 1, 0.5)
	p.hue = math.Mod(p.hue+RainbowStep, 360)
	return c
}

// Hue returns the current rainbow hue in degrees.
func (p *ColorPicker) Hue() float64 {
	return p.hue
}
