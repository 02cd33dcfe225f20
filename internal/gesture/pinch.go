package gesture

import "github.com/ayusman/airsketch/internal/detector"

// PinchThreshold is the normalized index-thumb distance below which the
// hand counts as pinching. A distance equal to the threshold is not a pinch.
const PinchThreshold = 0.05

// PinchDistance returns the 2D distance between the index and thumb tips.
func PinchDistance(hand *detector.Hand) float64 {
	return detector.Distance2D(hand.Points[detector.IndexTip], hand.Points[detector.ThumbTip])
}

// PinchState is the drawing state of a PinchTracker.
type PinchState int

const (
	Idle PinchState = iota
	Drawing
)

func (s PinchState) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

// Transition is the edge reported by PinchTracker.Update.
type Transition int

const (
	None Transition = iota
	DrawStart
	DrawContinue
	DrawEnd
)

func (t Transition) String() string {
	switch t {
	case DrawStart:
		return "draw_start"
	case DrawContinue:
		return "draw_continue"
	case DrawEnd:
		return "draw_end"
	default:
		return "none"
	}
}

// PinchTracker turns a stream of pinch distances into draw edges.
type PinchTracker struct {
	enter float64
	exit  float64
	state PinchState
}

// NewPinchTracker returns a tracker that engages below PinchThreshold and
// releases at or above it.
func NewPinchTracker() *PinchTracker {
	return &PinchTracker{enter: PinchThreshold, exit: PinchThreshold}
}

// NewPinchTrackerWithHysteresis engages below enter and, once drawing,
// stays engaged until the distance reaches exit. exit below enter is raised
// to enter.
func NewPinchTrackerWithHysteresis(enter, exit float64) *PinchTracker {
	return &PinchTracker{enter: enter, exit: max(enter, exit)}
}

// Update feeds one distance sample and returns the resulting edge.
func (p *PinchTracker) Update(distance float64) Transition {
	switch p.state {
	case Idle:
		if distance < p.enter {
			p.state = Drawing
			return DrawStart
		}
		return None
	default:
		if distance < p.exit {
			return DrawContinue
		}
		p.state = Idle
		return DrawEnd
	}
}

// Reset returns to Idle without reporting an edge. It is called when the
// hand leaves the frame.
func (p *PinchTracker) Reset() {
	p.state = Idle
}

// State returns the current state.
func (p *PinchTracker) State() PinchState {
	return p.state
}
