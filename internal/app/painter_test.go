package app

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/airsketch/internal/canvas"
	"github.com/ayusman/airsketch/internal/detector"
	"github.com/ayusman/airsketch/internal/gesture"
	"github.com/ayusman/airsketch/internal/store"
)

const (
	testWidth  = 320
	testHeight = 240
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testEpoch }

func newTestPainter(t *testing.T, cfg PainterConfig) *Painter {
	t.Helper()
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = testWidth, testHeight
	}
	if cfg.Brush == (BrushSettings{}) {
		cfg.Brush = DefaultBrushSettings()
	}
	if cfg.Clock == nil {
		cfg.Clock = fixedClock
	}
	cfg.Rng = rand.New(rand.NewPCG(1, 2))
	p, err := NewPainter(cfg)
	if err != nil {
		t.Fatalf("NewPainter() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func handFrame(hands ...detector.Hand) detector.Frame {
	return detector.Frame{Seq: 1, Hands: hands}
}

func pinched(x, y float64) detector.Hand {
	return detector.HandAt("Right", x, y, 0.01)
}

func released(x, y float64) detector.Hand {
	return detector.HandAt("Right", x, y, 0.2)
}

func surfaceAlpha(p *Painter, x, y int) uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface.Mat().GetVecbAt(y, x)[3]
}

func TestPainter_PinchStrokeAndHistory(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})

	if got := p.history.Len(); got != 1 {
		t.Fatalf("history.Len() after start = %d, want 1", got)
	}

	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	p.HandleFrame(nil, handFrame(pinched(0.6, 0.5)))
	if got := p.pinch.State(); got != gesture.Drawing {
		t.Fatalf("pinch state = %v, want drawing", got)
	}
	p.HandleFrame(nil, handFrame(released(0.6, 0.5)))

	if got := p.pinch.State(); got != gesture.Idle {
		t.Errorf("pinch state after release = %v, want idle", got)
	}
	if a := surfaceAlpha(p, 176, 120); a == 0 {
		t.Error("stroke left no paint between the two samples")
	}
	if got := p.history.Len(); got != 2 {
		t.Errorf("history.Len() after stroke = %d, want 2", got)
	}
	if p.LiveParticles() == 0 {
		t.Error("expected sparks along the stroke")
	}

	if !p.Undo() {
		t.Fatal("Undo() = false, want true")
	}
	p.Wait()
	if a := surfaceAlpha(p, 176, 120); a != 0 {
		t.Errorf("alpha after undo = %d, want 0", a)
	}

	if !p.Redo() {
		t.Fatal("Redo() = false, want true")
	}
	p.Wait()
	if a := surfaceAlpha(p, 176, 120); a == 0 {
		t.Error("redo did not restore the stroke")
	}
}

func TestPainter_NoPaintWithoutPinch(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})

	p.HandleFrame(nil, handFrame(released(0.5, 0.5)))
	p.HandleFrame(nil, handFrame(released(0.6, 0.5)))

	if a := surfaceAlpha(p, 176, 120); a != 0 {
		t.Errorf("alpha = %d, want 0", a)
	}
	if got := p.history.Len(); got != 1 {
		t.Errorf("history.Len() = %d, want 1", got)
	}
}

func TestPainter_HandLostEndsStroke(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})

	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	p.HandleFrame(nil, handFrame())

	if got := p.pinch.State(); got != gesture.Idle {
		t.Errorf("pinch state = %v, want idle", got)
	}
	if got := p.history.Len(); got != 2 {
		t.Errorf("history.Len() = %d, want 2", got)
	}

	// A new pinch starts a fresh stroke instead of joining the old point.
	p.HandleFrame(nil, handFrame(pinched(0.1, 0.1)))
	if a := surfaceAlpha(p, 96, 80); a != 0 {
		t.Errorf("alpha between strokes = %d, want 0", a)
	}
}

func TestPainter_EraserEmitsNoParticles(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})
	if err := p.SetEraser(true); err != nil {
		t.Fatalf("SetEraser() error = %v", err)
	}

	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	p.HandleFrame(nil, handFrame(pinched(0.6, 0.5)))

	if got := p.LiveParticles(); got != 0 {
		t.Errorf("LiveParticles() = %d, want 0", got)
	}
}

func TestPainter_ParticlesOffClearsPool(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})

	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	if p.LiveParticles() == 0 {
		t.Fatal("expected sparks")
	}
	if err := p.SetParticles(false); err != nil {
		t.Fatalf("SetParticles() error = %v", err)
	}
	if got := p.LiveParticles(); got != 0 {
		t.Errorf("LiveParticles() = %d, want 0", got)
	}

	p.HandleFrame(nil, handFrame(pinched(0.6, 0.5)))
	if got := p.LiveParticles(); got != 0 {
		t.Errorf("LiveParticles() with particles off = %d, want 0", got)
	}
}

func TestPainter_ColorAndEraserAreExclusive(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})

	if err := p.SetEraser(true); err != nil {
		t.Fatal(err)
	}
	if err := p.SetRainbow(true); err != nil {
		t.Fatal(err)
	}
	if p.Brush().Eraser {
		t.Error("rainbow did not leave eraser mode")
	}

	if err := p.SetEraser(true); err != nil {
		t.Fatal(err)
	}
	if err := p.SetColor("#00ff00"); err != nil {
		t.Fatal(err)
	}
	b := p.Brush()
	if b.Eraser || b.Rainbow {
		t.Errorf("after SetColor eraser=%v rainbow=%v, want both false", b.Eraser, b.Rainbow)
	}
	if b.Color != "#00ff00" {
		t.Errorf("Color = %q, want #00ff00", b.Color)
	}
}

func TestPainter_RejectsInvalidSettings(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})
	before := p.Brush()

	tests := []struct {
		name string
		set  func() error
	}{
		{"size zero", func() error { return p.SetSize(0) }},
		{"size too large", func() error { return p.SetSize(maxBrushSize + 1) }},
		{"opacity", func() error { return p.SetOpacity(101) }},
		{"brush", func() error { return p.SetBrush(canvas.BrushMode("laser")) }},
		{"color", func() error { return p.SetColor("pink") }},
		{"background", func() error { return p.SetBackground(canvas.Background("stars")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); err == nil {
				t.Error("expected error")
			}
			if got := p.Brush(); got != before {
				t.Errorf("brush changed to %+v", got)
			}
		})
	}
}

func TestPainter_ClearRecordsHistory(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})

	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	p.HandleFrame(nil, handFrame(released(0.5, 0.5)))
	p.Clear()

	if a := surfaceAlpha(p, 160, 120); a != 0 {
		t.Errorf("alpha after clear = %d, want 0", a)
	}
	if got := p.history.Len(); got != 3 {
		t.Errorf("history.Len() = %d, want 3", got)
	}

	if !p.Undo() {
		t.Fatal("Undo() = false")
	}
	p.Wait()
	if a := surfaceAlpha(p, 160, 120); a == 0 {
		t.Error("undo of clear did not bring the stroke back")
	}
}

func TestPainter_SettingsPersist(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	p := newTestPainter(t, PainterConfig{Settings: s.Settings()})
	if err := p.SetColor("#00ff00"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetSize(12); err != nil {
		t.Fatal(err)
	}

	p2 := newTestPainter(t, PainterConfig{Settings: s.Settings()})
	b := p2.Brush()
	if b.Color != "#00ff00" || b.Size != 12 {
		t.Errorf("restored brush = %+v", b)
	}
}

func TestPainter_Export(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	dir := t.TempDir()
	p := newTestPainter(t, PainterConfig{ExportDir: dir, Artworks: s.Artworks()})
	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	p.HandleFrame(nil, handFrame(pinched(0.6, 0.5)))

	art, err := p.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if art.Name != canvas.ExportName(testEpoch) {
		t.Errorf("Name = %q, want %q", art.Name, canvas.ExportName(testEpoch))
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Errorf("exported file: %v", err)
	}
	if art.Width != testWidth || art.Height != testHeight {
		t.Errorf("size = %dx%d", art.Width, art.Height)
	}

	list, err := s.Artworks().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != art.ID {
		t.Fatalf("List() = %+v, want the exported artwork", list)
	}

	stored, err := s.Artworks().GetByID(art.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	img, err := canvas.Decode(stored.PNG)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer img.Close()
	if img.Cols() != testWidth || img.Rows() != testHeight {
		t.Errorf("stored PNG is %dx%d", img.Cols(), img.Rows())
	}
}

func TestPainter_ComposeAndState(t *testing.T) {
	p := newTestPainter(t, PainterConfig{})
	p.HandleFrame(nil, handFrame(pinched(0.5, 0.5)))
	p.TickParticles(testEpoch)

	out, err := p.Compose()
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	defer out.Close()
	if out.Cols() != testWidth || out.Rows() != testHeight || out.Channels() != 3 {
		t.Errorf("Compose() = %dx%d/%d", out.Cols(), out.Rows(), out.Channels())
	}

	st, ok := p.State().(PainterState)
	if !ok {
		t.Fatalf("State() type = %T", p.State())
	}
	if st.Pinch != "drawing" {
		t.Errorf("Pinch = %q, want drawing", st.Pinch)
	}
	if st.PinchDistance <= 0 || st.PinchDistance >= gesture.PinchThreshold {
		t.Errorf("PinchDistance = %v", st.PinchDistance)
	}
}
