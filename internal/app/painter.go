package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/canvas"
	"github.com/ayusman/airsketch/internal/detector"
	"github.com/ayusman/airsketch/internal/effects"
	"github.com/ayusman/airsketch/internal/gesture"
	"github.com/ayusman/airsketch/internal/history"
	"github.com/ayusman/airsketch/internal/particle"
	"github.com/ayusman/airsketch/internal/store"
	"github.com/ayusman/airsketch/internal/telemetry"
)

const (
	// strokeSaveDelay is how long after a stroke starts the pre-stroke
	// state is offered to history.
	strokeSaveDelay = 100 * time.Millisecond
	// trailFade is the share of particle alpha removed per tick when
	// trails are on.
	trailFade = 0.1
	// brushSettingsKey is the settings row holding BrushSettings.
	brushSettingsKey = "brush"
	maxBrushSize     = 50
)

// PainterConfig configures a Painter.
type PainterConfig struct {
	Width, Height int
	Brush         BrushSettings
	ExportDir     string
	SessionID     string

	Clock     func() time.Time
	Rng       *rand.Rand
	Logger    zerolog.Logger
	Telemetry *telemetry.Instruments
	// Artworks and Settings are optional. Without them exports only go to
	// ExportDir and brush changes are not remembered.
	Artworks *store.ArtworkRepository
	Settings *store.SettingsRepository
}

// PainterState is the telemetry view of a Painter.
type PainterState struct {
	Brush         BrushSettings `json:"brush"`
	Pinch         string        `json:"pinch"`
	PinchDistance float64       `json:"pinchDistance"`
	Hue           float64       `json:"hue"`
	CanUndo       bool          `json:"canUndo"`
	CanRedo       bool          `json:"canRedo"`
	Particles     int           `json:"particles"`
}

// Painter draws on a surface with the index fingertip while the thumb and
// index finger are pinched.
type Painter struct {
	mu sync.Mutex

	width, height int
	surface       *canvas.Surface
	overlay       gocv.Mat
	sparks        gocv.Mat
	frame         gocv.Mat

	brush   BrushSettings
	style   canvas.Style
	bg      canvas.Background
	picker  canvas.ColorPicker
	pinch   *gesture.PinchTracker
	last    image.Point
	lastD   float64
	pool    *particle.Pool
	history *history.Manager

	exportDir string
	sessionID string
	now       func() time.Time
	log       zerolog.Logger
	metrics   *telemetry.Instruments
	artworks  *store.ArtworkRepository
	settings  *store.SettingsRepository
}

// surfaceTarget adapts a Surface to history.Target.
type surfaceTarget struct {
	s *canvas.Surface
}

func (t surfaceTarget) Snapshot() ([]byte, error) {
	return t.s.Snapshot()
}

func (t surfaceTarget) Prepare(data []byte) (history.Pending, error) {
	img, err := t.s.Prepare(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// NewPainter allocates the surface and layers and records the blank surface
// as the first history entry. Stored brush settings override cfg.Brush.
func NewPainter(cfg PainterConfig) (*Painter, error) {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	surface, err := canvas.NewSurface(cfg.Width, cfg.Height, cfg.Rng)
	if err != nil {
		return nil, err
	}

	p := &Painter{
		width:     cfg.Width,
		height:    cfg.Height,
		surface:   surface,
		overlay:   canvas.NewLayer(cfg.Width, cfg.Height),
		sparks:    canvas.NewLayer(cfg.Width, cfg.Height),
		frame:     gocv.NewMat(),
		pinch:     gesture.NewPinchTracker(),
		pool:      particle.NewPool(particle.DefaultMaxLive, particle.DefaultMaxFree, particle.PaintPhysics, cfg.Rng),
		exportDir: cfg.ExportDir,
		sessionID: cfg.SessionID,
		now:       cfg.Clock,
		log:       cfg.Logger,
		metrics:   cfg.Telemetry,
		artworks:  cfg.Artworks,
		settings:  cfg.Settings,
	}
	p.history = history.New(surfaceTarget{s: surface}, history.Options{
		Clock:  cfg.Clock,
		Lock:   &p.mu,
		Logger: cfg.Logger,
	})

	brush := cfg.Brush
	if p.settings != nil {
		var stored BrushSettings
		switch err := p.settings.GetJSON(brushSettingsKey, &stored); {
		case err == nil:
			brush = stored
		case !errors.Is(err, store.ErrNotFound):
			p.log.Warn().Err(err).Msg("Failed to load brush settings")
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.applyBrushLocked(brush); err != nil {
		p.log.Warn().Err(err).Msg("Invalid brush settings, using defaults")
		if err := p.applyBrushLocked(DefaultBrushSettings()); err != nil {
			return nil, err
		}
	}
	p.history.SaveNow()
	return p, nil
}

// HandleFrame implements Consumer.
func (p *Painter) HandleFrame(img *gocv.Mat, frame detector.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keepFrame(&p.frame, img)
	canvas.ClearLayer(&p.overlay)

	if len(frame.Hands) == 0 {
		if p.pinch.State() == gesture.Drawing {
			p.history.SaveNow()
		}
		p.pinch.Reset()
		p.lastD = 0
		return
	}

	for i := range frame.Hands {
		if err := effects.DrawHand(&p.overlay, &frame.Hands[i]); err != nil {
			p.log.Debug().Err(err).Msg("Hand overlay failed")
		}
	}

	hand := &frame.Hands[0]
	p.lastD = gesture.PinchDistance(hand)
	tip := effects.ToPixel(hand.Points[detector.IndexTip], p.width, p.height)

	switch p.pinch.Update(p.lastD) {
	case gesture.DrawStart:
		p.last = tip
		p.history.SaveAfter(strokeSaveDelay)
		p.strokeLocked(tip)
	case gesture.DrawContinue:
		p.strokeLocked(tip)
	case gesture.DrawEnd:
		p.history.SaveNow()
	}
}

func (p *Painter) strokeLocked(to image.Point) {
	style := p.style
	if style.Tool == canvas.ToolPen {
		style.Color = p.picker.Next()
	}
	seg := canvas.Segment{From: p.last, To: to}
	if err := p.surface.StrokeSegment(seg, style); err != nil {
		p.log.Error().Err(err).Msg("Stroke failed")
	}
	p.last = to

	if p.brush.Particles && style.Tool == canvas.ToolPen {
		p.pool.Emit(float64(to.X), float64(to.Y), style.Color, particle.EmitCount(style.HighEnergy()))
	}
}

// TickParticles implements Consumer.
func (p *Painter) TickParticles(time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.brush.Trail {
		if err := particle.Fade(&p.sparks, trailFade); err != nil {
			p.log.Debug().Err(err).Msg("Particle fade failed")
		}
	} else {
		canvas.ClearLayer(&p.sparks)
	}
	p.pool.Tick(func(pt *particle.Particle) {
		particle.Draw(&p.sparks, pt, particle.PaintStyle)
	})
}

// Compose implements Consumer.
func (p *Painter) Compose() (gocv.Mat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return canvas.Compose(&p.frame, p.bg, p.width, p.height, p.surface.Mat(), &p.sparks, &p.overlay)
}

// State implements Consumer.
func (p *Painter) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PainterState{
		Brush:         p.brush,
		Pinch:         p.pinch.State().String(),
		PinchDistance: p.lastD,
		Hue:           p.picker.Hue(),
		CanUndo:       p.history.CanUndo(),
		CanRedo:       p.history.CanRedo(),
		Particles:     p.pool.Live(),
	}
}

// LiveParticles implements Consumer.
func (p *Painter) LiveParticles() int {
	return p.pool.Live()
}

// Brush returns the current brush settings.
func (p *Painter) Brush() BrushSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brush
}

// ApplyBrush replaces every brush setting at once and persists them.
func (p *Painter) ApplyBrush(b BrushSettings) error {
	return p.update(func(cur *BrushSettings) { *cur = b })
}

// SetBrush selects the brush mode.
func (p *Painter) SetBrush(mode canvas.BrushMode) error {
	return p.update(func(b *BrushSettings) { b.Mode = string(mode) })
}

// SetColor selects a fixed pen color and leaves eraser and rainbow modes.
func (p *Painter) SetColor(hex string) error {
	return p.update(func(b *BrushSettings) {
		b.Color = hex
		b.Eraser = false
		b.Rainbow = false
	})
}

// SetRainbow toggles the cycling hue pen.
func (p *Painter) SetRainbow(on bool) error {
	return p.update(func(b *BrushSettings) {
		b.Rainbow = on
		if on {
			b.Eraser = false
		}
	})
}

// SetEraser toggles the eraser tool.
func (p *Painter) SetEraser(on bool) error {
	return p.update(func(b *BrushSettings) { b.Eraser = on })
}

// SetOpacity sets the stroke opacity in percent.
func (p *Painter) SetOpacity(percent int) error {
	return p.update(func(b *BrushSettings) { b.Opacity = percent })
}

// SetSize sets the pen width in pixels.
func (p *Painter) SetSize(px int) error {
	return p.update(func(b *BrushSettings) { b.Size = px })
}

// SetBackground selects the backdrop behind the surface.
func (p *Painter) SetBackground(bg canvas.Background) error {
	return p.update(func(b *BrushSettings) { b.Background = string(bg) })
}

// SetParticles toggles spark emission. Turning it off clears live sparks.
func (p *Painter) SetParticles(on bool) error {
	return p.update(func(b *BrushSettings) { b.Particles = on })
}

// SetTrail toggles fading particle trails.
func (p *Painter) SetTrail(on bool) error {
	return p.update(func(b *BrushSettings) { b.Trail = on })
}

func (p *Painter) update(fn func(*BrushSettings)) error {
	p.mu.Lock()
	next := p.brush
	fn(&next)
	err := p.applyBrushLocked(next)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if p.settings != nil {
		if err := p.settings.SetJSON(brushSettingsKey, next); err != nil {
			p.log.Warn().Err(err).Msg("Failed to persist brush settings")
		}
	}
	return nil
}

func (p *Painter) applyBrushLocked(b BrushSettings) error {
	style, bg, err := b.resolve()
	if err != nil {
		return err
	}
	if p.brush.Particles && !b.Particles {
		p.pool.Clear()
		canvas.ClearLayer(&p.sparks)
	}
	p.brush = b
	p.style = style
	p.bg = bg
	p.picker.Base = style.Color
	p.picker.Rainbow = b.Rainbow
	return nil
}

// Clear erases the surface and records the blank state.
func (p *Painter) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.surface.Clear()
	p.history.SaveNow()
}

// Undo steps back one history entry. It reports false at the oldest entry.
func (p *Painter) Undo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Undo()
}

// Redo steps forward one history entry. It reports false at the newest entry.
func (p *Painter) Redo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Redo()
}

// Export writes the surface to the export directory as PNG and records it in
// the artwork store when one is configured. Pending restores finish first.
func (p *Painter) Export(ctx context.Context) (*store.Artwork, error) {
	p.history.Wait()

	p.mu.Lock()
	now := p.now()
	path, data, err := p.surface.Export(p.exportDir, now)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("export artwork: %w", err)
	}

	art := &store.Artwork{
		SessionID: p.sessionID,
		Name:      canvas.ExportName(now),
		Path:      path,
		Width:     p.width,
		Height:    p.height,
		PNG:       data,
		CreatedAt: now,
	}
	if p.artworks != nil {
		if err := p.artworks.Create(art); err != nil {
			return nil, fmt.Errorf("record artwork: %w", err)
		}
	}
	if p.metrics != nil {
		p.metrics.ArtworkExported(ctx)
	}
	p.log.Info().Str("path", path).Int("bytes", len(data)).Msg("Artwork exported")
	return art, nil
}

// Wait blocks until pending history restores have been applied.
func (p *Painter) Wait() {
	p.history.Wait()
}

// Close implements Consumer.
func (p *Painter) Close() error {
	p.history.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.Clear()
	p.overlay.Close()
	p.sparks.Close()
	p.frame.Close()
	return p.surface.Close()
}
