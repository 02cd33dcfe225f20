package app

import (
	"fmt"
	"image"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/canvas"
	"github.com/ayusman/airsketch/internal/detector"
	"github.com/ayusman/airsketch/internal/effects"
	"github.com/ayusman/airsketch/internal/gesture"
	"github.com/ayusman/airsketch/internal/particle"
)

const (
	// dashboardMaxParticles caps the fingertip sparks.
	dashboardMaxParticles = 200
	// sparkChance is the per-hand, per-frame probability of a spark.
	sparkChance = 0.3
	panelMargin = 10
)

// DashboardConfig configures a Dashboard.
type DashboardConfig struct {
	Width, Height int
	Clock         func() time.Time
	Rng           *rand.Rand
	Logger        zerolog.Logger
}

// HandState is the per-hand part of DashboardState.
type HandState struct {
	Handedness string                `json:"handedness"`
	Score      float64               `json:"score"`
	Gesture    gesture.Label         `json:"gesture"`
	Fingers    [5]bool               `json:"fingers"`
	Motion     *gesture.MotionSample `json:"motion,omitempty"`
}

// DashboardState is the telemetry view of a Dashboard.
type DashboardState struct {
	Hands          []HandState `json:"hands"`
	Gesture        string      `json:"gesture"`
	PinchDistance  float64     `json:"pinchDistance"`
	Face           string      `json:"face"`
	Pose           string      `json:"pose"`
	PoseVisibility float64     `json:"poseVisibility"`
	FPS            int         `json:"fps"`
	LatencyMs      int         `json:"latencyMs"`
	DetectionRate  float64     `json:"detectionRate"`
	Uptime         string      `json:"uptime"`
	Frames         uint64      `json:"frames"`
	Particles      int         `json:"particles"`
	HeatmapPoints  int         `json:"heatmapPoints"`
}

// Dashboard visualizes every landmark stream at once: skeleton overlays,
// gesture labels, motion, a heatmap, a 3D hand view and ambient effects.
type Dashboard struct {
	mu sync.Mutex

	width, height int
	now           func() time.Time
	rng           *rand.Rand
	log           zerolog.Logger

	frame   gocv.Mat
	overlay gocv.Mat
	sparks  gocv.Mat
	rainL   gocv.Mat
	fieldL  gocv.Mat

	pool    *particle.Pool
	rain    *effects.MatrixRain
	field   *effects.BackgroundField
	heat    *effects.Heatmap
	motion  *gesture.MotionTracker
	first   *detector.Hand
	labels  []string
	state   DashboardState
	started time.Time

	frames       uint64
	withHands    uint64
	windowStart  time.Time
	windowFrames int
}

// NewDashboard allocates the dashboard layers.
func NewDashboard(cfg DashboardConfig) (*Dashboard, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dashboard size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	now := cfg.Clock()
	return &Dashboard{
		width:       cfg.Width,
		height:      cfg.Height,
		now:         cfg.Clock,
		rng:         cfg.Rng,
		log:         cfg.Logger,
		frame:       gocv.NewMat(),
		overlay:     canvas.NewLayer(cfg.Width, cfg.Height),
		sparks:      canvas.NewLayer(cfg.Width, cfg.Height),
		rainL:       canvas.NewLayer(cfg.Width, cfg.Height),
		fieldL:      canvas.NewLayer(cfg.Width, cfg.Height),
		pool:        particle.NewPool(dashboardMaxParticles, particle.DefaultMaxFree, particle.DashboardPhysics, cfg.Rng),
		rain:        effects.NewMatrixRain(cfg.Width, cfg.Height, cfg.Rng),
		field:       effects.NewBackgroundField(cfg.Width, cfg.Height, cfg.Rng),
		heat:        effects.NewHeatmap(),
		motion:      gesture.NewMotionTracker(),
		started:     now,
		windowStart: now,
		state:       DashboardState{Hands: []HandState{}, Gesture: string(gesture.NoHand), Face: "none", Pose: "none"},
	}, nil
}

// HandleFrame implements Consumer.
func (d *Dashboard) HandleFrame(img *gocv.Mat, frame detector.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keepFrame(&d.frame, img)
	canvas.ClearLayer(&d.overlay)
	d.updateMetricsLocked(len(frame.Hands) > 0)

	d.handleHandsLocked(frame.Hands)
	d.handleFaceLocked(frame.Face)
	d.handlePoseLocked(frame.Pose)
	d.state.Particles = d.pool.Live()
	d.state.HeatmapPoints = d.heat.Len()
}

func (d *Dashboard) handleHandsLocked(hands []detector.Hand) {
	d.first = nil
	d.state.Hands = make([]HandState, 0, len(hands))
	d.state.Gesture = string(gesture.NoHand)
	d.state.PinchDistance = 0

	seen := make([]string, 0, len(hands))
	for i := range hands {
		hand := &hands[i]
		if err := effects.DrawHand(&d.overlay, hand); err != nil {
			d.log.Debug().Err(err).Msg("Hand overlay failed")
		}

		label := hand.Handedness
		if label == "" {
			label = fmt.Sprintf("hand%d", i)
		}
		seen = append(seen, label)

		hs := HandState{
			Handedness: hand.Handedness,
			Score:      hand.Score,
			Gesture:    gesture.Classify(hand),
			Fingers:    gesture.FingersExtended(hand),
		}
		tipL := hand.Points[detector.IndexTip]
		if s, ok := d.motion.Update(label, tipL.X, tipL.Y); ok {
			hs.Motion = &s
		}
		d.state.Hands = append(d.state.Hands, hs)

		tip := effects.ToPixel(tipL, d.width, d.height)
		if d.rng.Float64() < sparkChance {
			c := effects.Cyan
			if hand.Handedness == "Left" {
				c = effects.Magenta
			}
			d.pool.Emit(float64(tip.X), float64(tip.Y), c, 1)
		}
		d.heat.Add(tipL.X, tipL.Y)

		if i == 0 {
			// hands is only valid for this call.
			first := *hand
			d.first = &first
			d.state.Gesture = string(hs.Gesture)
			d.state.PinchDistance = gesture.PinchDistance(hand)
		}
	}

	for _, l := range d.labels {
		if !slices.Contains(seen, l) {
			d.motion.Forget(l)
		}
	}
	d.labels = seen
}

// handleFaceLocked and handlePoseLocked contain their own failures: a bad
// mesh is logged and reported as "error" without affecting the other parts.
func (d *Dashboard) handleFaceLocked(face []detector.Landmark) {
	if len(face) == 0 {
		d.state.Face = "none"
		return
	}
	if err := effects.DrawFace(&d.overlay, face); err != nil {
		d.log.Warn().Err(err).Msg("Face overlay failed")
		d.state.Face = "error"
		return
	}
	d.state.Face = "detected"
}

func (d *Dashboard) handlePoseLocked(pose []detector.Landmark) {
	d.state.PoseVisibility = 0
	if len(pose) == 0 {
		d.state.Pose = "none"
		return
	}
	ratio, err := effects.DrawPose(&d.overlay, pose)
	if err != nil {
		d.log.Warn().Err(err).Msg("Pose overlay failed")
		d.state.Pose = "error"
		return
	}
	d.state.Pose = "detected"
	d.state.PoseVisibility = ratio
}

func (d *Dashboard) updateMetricsLocked(hands bool) {
	now := d.now()
	d.frames++
	if hands {
		d.withHands++
	}
	d.windowFrames++
	if now.Sub(d.windowStart) >= time.Second {
		d.state.FPS = d.windowFrames
		d.windowFrames = 0
		d.windowStart = now
		if d.state.FPS > 0 {
			d.state.LatencyMs = 1000 / d.state.FPS
		}
	}
	d.state.Frames = d.frames
	d.state.DetectionRate = float64(d.withHands) / float64(d.frames) * 100
	d.state.Uptime = FormatUptime(now.Sub(d.started))
}

// FormatUptime renders d as HH:MM:SS.
func FormatUptime(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}

// TickParticles implements Consumer. It also drives the ambient effects.
func (d *Dashboard) TickParticles(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.rain.Update(&d.rainL, now); err != nil {
		d.log.Debug().Err(err).Msg("Matrix rain failed")
	}
	d.field.Step()
	canvas.ClearLayer(&d.fieldL)
	d.field.Draw(&d.fieldL)

	canvas.ClearLayer(&d.sparks)
	d.pool.Tick(func(pt *particle.Particle) {
		particle.Draw(&d.sparks, pt, particle.DashboardStyle)
	})
}

// Compose implements Consumer.
func (d *Dashboard) Compose() (gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, err := canvas.Compose(&d.frame, canvas.BackgroundTransparent, d.width, d.height, &d.fieldL, &d.rainL, &d.sparks, &d.overlay)
	if err != nil {
		return out, err
	}
	if err := d.placePanelsLocked(&out); err != nil {
		out.Close()
		return gocv.NewMat(), err
	}
	d.drawMetricsLocked(&out)
	return out, nil
}

func (d *Dashboard) placePanelsLocked(out *gocv.Mat) error {
	proj := effects.NewPanel(effects.ProjectionWidth, effects.ProjectionHeight)
	defer proj.Close()
	if d.first != nil {
		effects.DrawProjection(&proj, d.first)
	}
	if err := effects.Place(out, proj, image.Pt(d.width-effects.ProjectionWidth-panelMargin, panelMargin)); err != nil {
		return err
	}

	chart := effects.NewPanel(effects.ChartWidth, effects.ChartHeight)
	defer chart.Close()
	labels := d.motion.Labels()
	slices.Sort(labels)
	series := make([]effects.Series, 0, len(labels))
	for _, l := range labels {
		c := effects.Cyan
		if l == "Left" {
			c = effects.Magenta
		}
		series = append(series, effects.Series{Label: l, Values: d.motion.History(l), Color: c})
	}
	effects.DrawVelocityChart(&chart, series...)
	if err := effects.Place(out, chart, image.Pt(panelMargin, d.height-effects.ChartHeight-panelMargin)); err != nil {
		return err
	}

	heat, err := d.heatPanelLocked()
	if err != nil {
		return err
	}
	defer heat.Close()
	return effects.Place(out, heat, image.Pt(d.width-effects.HeatmapWidth-panelMargin, d.height-effects.HeatmapHeight-panelMargin))
}

// heatPanelLocked renders the heatmap over a panel-colored BGR backdrop.
func (d *Dashboard) heatPanelLocked() (gocv.Mat, error) {
	layer := canvas.NewLayer(effects.HeatmapWidth, effects.HeatmapHeight)
	defer layer.Close()
	if err := d.heat.Render(&layer); err != nil {
		return gocv.NewMat(), err
	}

	base := canvas.NewLayer(effects.HeatmapWidth, effects.HeatmapHeight)
	defer base.Close()
	base.SetTo(gocv.NewScalar(float64(effects.Panel.B), float64(effects.Panel.G), float64(effects.Panel.R), 255))
	if err := canvas.Composite(&base, &layer, canvas.OpSourceOver, 1); err != nil {
		return gocv.NewMat(), err
	}

	out := gocv.NewMat()
	gocv.CvtColor(base, &out, gocv.ColorBGRAToBGR)
	return out, nil
}

func (d *Dashboard) drawMetricsLocked(out *gocv.Mat) {
	lines := []string{
		fmt.Sprintf("FPS %d  %dms", d.state.FPS, d.state.LatencyMs),
		fmt.Sprintf("HANDS %d  %s", len(d.state.Hands), d.state.Gesture),
		fmt.Sprintf("DETECT %.0f%%", d.state.DetectionRate),
		"UP " + d.state.Uptime,
	}
	for i, l := range lines {
		gocv.PutText(out, l, image.Pt(panelMargin, 24+i*22), gocv.FontHersheySimplex, 0.6, effects.Green, 2)
	}
}

// State implements Consumer.
func (d *Dashboard) State() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.Hands = slices.Clone(d.state.Hands)
	s.Particles = d.pool.Live()
	return s
}

// LiveParticles implements Consumer.
func (d *Dashboard) LiveParticles() int {
	return d.pool.Live()
}

// Close implements Consumer.
func (d *Dashboard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pool.Clear()
	d.frame.Close()
	d.overlay.Close()
	d.sparks.Close()
	d.rainL.Close()
	return d.fieldL.Close()
}
