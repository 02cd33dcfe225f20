package app

import (
	"fmt"

	"github.com/ayusman/airsketch/internal/canvas"
	"github.com/ayusman/airsketch/internal/config"
)

// BrushSettings are the user-facing drawing options. They are persisted as
// one JSON settings row.
type BrushSettings struct {
	Mode       string `json:"mode"`
	Color      string `json:"color"`
	Rainbow    bool   `json:"rainbow"`
	Eraser     bool   `json:"eraser"`
	Size       int    `json:"size"`
	Opacity    int    `json:"opacity"`
	Background string `json:"background"`
	Particles  bool   `json:"particles"`
	Trail      bool   `json:"trail"`
}

// DefaultBrushSettings mirrors canvas.DefaultStyle with particles on.
func DefaultBrushSettings() BrushSettings {
	return BrushSettings{
		Mode:       string(canvas.BrushNormal),
		Color:      canvas.Hex(canvas.DefaultStyle.Color),
		Size:       canvas.DefaultStyle.Width,
		Opacity:    100,
		Background: string(canvas.BackgroundTransparent),
		Particles:  true,
	}
}

// BrushFromConfig builds the startup brush from the loaded configuration.
func BrushFromConfig(cfg config.Config) BrushSettings {
	b := DefaultBrushSettings()
	b.Mode = cfg.Brush.Type
	b.Color = cfg.Brush.Color
	b.Size = cfg.Brush.Size
	b.Opacity = cfg.Brush.Opacity
	b.Background = cfg.Background
	b.Particles = cfg.Effects.Particles
	b.Trail = cfg.Effects.Trail
	return b
}

// resolve validates b and converts it to a stroke style and backdrop.
func (b BrushSettings) resolve() (canvas.Style, canvas.Background, error) {
	mode, err := canvas.ParseBrushMode(b.Mode)
	if err != nil {
		return canvas.Style{}, "", err
	}
	c, err := canvas.ParseHex(b.Color)
	if err != nil {
		return canvas.Style{}, "", err
	}
	bg, err := canvas.ParseBackground(b.Background)
	if err != nil {
		return canvas.Style{}, "", err
	}
	if b.Size < 1 || b.Size > maxBrushSize {
		return canvas.Style{}, "", fmt.Errorf("brush size must be within 1-%d, got %d", maxBrushSize, b.Size)
	}
	if b.Opacity < 0 || b.Opacity > 100 {
		return canvas.Style{}, "", fmt.Errorf("opacity must be within 0-100, got %d", b.Opacity)
	}

	tool := canvas.ToolPen
	if b.Eraser {
		tool = canvas.ToolEraser
	}
	return canvas.Style{
		Mode:    mode,
		Tool:    tool,
		Color:   c,
		Width:   b.Size,
		Opacity: float64(b.Opacity) / 100,
	}, bg, nil
}
