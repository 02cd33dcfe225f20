package canvas

import (
	"fmt"
	"image"
	"image/color"
)

// BrushMode selects how a stroke segment is rendered.
type BrushMode string

const (
	BrushNormal BrushMode = "normal"
	BrushGlow   BrushMode = "glow"
	BrushSpray  BrushMode = "spray"
	BrushNeon   BrushMode = "neon"
)

// ParseBrushMode validates a brush mode name.
func ParseBrushMode(s string) (BrushMode, error) {
	switch m := BrushMode(s); m {
	case BrushNormal, BrushGlow, BrushSpray, BrushNeon:
		return m, nil
	}
	return "", fmt.Errorf("unknown brush %q", s)
}

// Tool is pen or eraser.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Brush constants.
const (
	GlowBlur      = 20
	NeonPasses    = 3
	NeonBlurBase  = 30
	NeonBlurStep  = 10
	NeonWidthStep = 2
	SprayDotSize  = 2
)

// Segment is one stroke step between consecutive samples, in surface pixels.
type Segment struct {
	From, To image.Point
}

// Style is the complete drawing state of a stroke. It is passed by value so
// nothing leaks from one stroke into the next.
type Style struct {
	Mode    BrushMode
	Tool    Tool
	Color   color.RGBA
	Width   int
	Opacity float64 // 0..1
}

// DefaultStyle is a 5px opaque pink pen.
var DefaultStyle = Style{
	Mode:    BrushNormal,
	Tool:    ToolPen,
	Color:   color.RGBA{R: 0xff, G: 0x00, B: 0x80, A: 0xff},
	Width:   5,
	Opacity: 1,
}

// LineWidth is the effective width: erasers are twice as wide.
func (s Style) LineWidth() int {
	w := max(s.Width, 1)
	if s.Tool == ToolEraser {
		return w * 2
	}
	return w
}

// HighEnergy reports whether the brush emits the larger particle burst.
func (s Style) HighEnergy() bool {
	return s.Mode == BrushNeon
}

func (s Style) op() Op {
	if s.Tool == ToolEraser {
		return OpDestinationOut
	}
	return OpSourceOver
}

// paint is the color drawn into the scratch layer; the eraser only needs coverage.
func (s Style) paint() color.RGBA {
	if s.Tool == ToolEraser {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	c := s.Color
	c.A = 255
	return c
}
