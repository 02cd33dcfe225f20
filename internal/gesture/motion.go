package gesture

import (
	"math"
	"sync"
)

// VelocityScale converts normalized per-frame displacement into the
// velocity unit used for buckets and charts.
const VelocityScale = 1000

// ChartWindow is the number of velocities kept per hand.
const ChartWindow = 30

// Movement buckets velocity.
type Movement string

const (
	Static Movement = "static"
	Slow   Movement = "slow"
	Medium Movement = "medium"
	Fast   Movement = "fast"
)

// ClassifyMovement buckets a velocity: <50 static, <200 slow, <500 medium, else fast.
func ClassifyMovement(v float64) Movement {
	switch {
	case v < 50:
		return Static
	case v < 200:
		return Slow
	case v < 500:
		return Medium
	default:
		return Fast
	}
}

// MotionSample is the motion of one hand between two consecutive frames.
type MotionSample struct {
	Label           string   `json:"label"`
	Velocity        float64  `json:"velocity"`
	Acceleration    float64  `json:"acceleration"`
	HasAcceleration bool     `json:"hasAcceleration"`
	Movement        Movement `json:"movement"`
}

type track struct {
	x, y       float64
	v          float64
	hasV       bool
	velocities []float64
}

// MotionTracker keeps the last position and velocity per hand label.
// It is safe for concurrent use.
type MotionTracker struct {
	mu     sync.Mutex
	tracks map[string]*track
}

// NewMotionTracker returns an empty tracker.
func NewMotionTracker() *MotionTracker {
	return &MotionTracker{tracks: make(map[string]*track)}
}

// Update records the index fingertip position (x, y) of the hand labelled label.
// The first position of a label yields no sample.
func (m *MotionTracker) Update(label string, x, y float64) (MotionSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tracks[label]
	if !ok {
		m.tracks[label] = &track{x: x, y: y}
		return MotionSample{}, false
	}

	v := math.Hypot(x-tr.x, y-tr.y) * VelocityScale
	s := MotionSample{Label: label, Velocity: v, Movement: ClassifyMovement(v)}
	if tr.hasV {
		s.Acceleration = v - tr.v
		s.HasAcceleration = true
	}

	tr.x, tr.y = x, y
	tr.v, tr.hasV = v, true
	tr.velocities = append(tr.velocities, v)
	if len(tr.velocities) > ChartWindow {
		tr.velocities = tr.velocities[len(tr.velocities)-ChartWindow:]
	}
	return s, true
}

// History returns a copy of the most recent velocities of label, oldest first.
func (m *MotionTracker) History(label string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tracks[label]
	if !ok {
		return nil
	}
	return append([]float64(nil), tr.velocities...)
}

// Forget drops the state of label, e.g. when the hand leaves the frame.
func (m *MotionTracker) Forget(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracks, label)
}

// Labels returns the labels currently tracked.
func (m *MotionTracker) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.tracks))
	for l := range m.tracks {
		out = append(out, l)
	}
	return out
}
