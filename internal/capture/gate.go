package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// GateConfig configures an ActivityGate.
type GateConfig struct {
	// Threshold is the percentage of pixels that must change between two
	// frames for the scene to count as active.
	Threshold float64
	IdleFPS   int
	ActiveFPS int
	// Hold keeps the gate active for this long after the last change.
	Hold  time.Duration
	Clock func() time.Time
}

// DefaultGateConfig idles at 5 fps and runs at 30 fps for two seconds after motion.
var DefaultGateConfig = GateConfig{
	Threshold: 1.0,
	IdleFPS:   5,
	ActiveFPS: 30,
	Hold:      2 * time.Second,
}

// ActivityGate throttles the capture rate while nothing moves in front of
// the camera. It compares consecutive blurred grayscale frames.
type ActivityGate struct {
	cfg GateConfig

	mu          sync.Mutex
	prevGray    gocv.Mat
	initialized bool
	lastActive  time.Time
	change      float64
}

// NewActivityGate creates a gate. Zero fields take DefaultGateConfig values.
func NewActivityGate(cfg GateConfig) *ActivityGate {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultGateConfig.Threshold
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = DefaultGateConfig.IdleFPS
	}
	if cfg.ActiveFPS <= 0 {
		cfg.ActiveFPS = DefaultGateConfig.ActiveFPS
	}
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultGateConfig.Hold
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &ActivityGate{cfg: cfg, prevGray: gocv.NewMat()}
}

// Observe feeds a frame and reports whether the scene is active, along with
// the percentage of pixels that changed since the previous frame. The first
// frame only sets the baseline.
func (g *ActivityGate) Observe(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.cfg.Clock()
	if frame == nil || frame.Empty() {
		return g.activeLocked(now), 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.initialized || blurred.Rows() != g.prevGray.Rows() || blurred.Cols() != g.prevGray.Cols() {
		blurred.CopyTo(&g.prevGray)
		g.initialized = true
		g.change = 0
		return g.activeLocked(now), 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	g.change = float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&g.prevGray)

	if g.change > g.cfg.Threshold {
		g.lastActive = now
	}
	return g.activeLocked(now), g.change
}

func (g *ActivityGate) activeLocked(now time.Time) bool {
	return !g.lastActive.IsZero() && now.Sub(g.lastActive) < g.cfg.Hold
}

// Active reports whether motion was seen within the hold window.
func (g *ActivityGate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeLocked(g.cfg.Clock())
}

// FPS returns the capture rate the gate currently asks for.
func (g *ActivityGate) FPS() int {
	if g.Active() {
		return g.cfg.ActiveFPS
	}
	return g.cfg.IdleFPS
}

// Reset drops the baseline frame and the activity state.
func (g *ActivityGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.prevGray.Empty() {
		g.prevGray.Close()
		g.prevGray = gocv.NewMat()
	}
	g.initialized = false
	g.lastActive = time.Time{}
	g.change = 0
}

// Close releases resources used by the gate.
func (g *ActivityGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prevGray.Close()
	g.initialized = false
}
