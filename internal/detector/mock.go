package detector

import (
	"context"
	"sync"
	"time"
)

// MockModel is a test implementation of the Model interface.
// It allows tests to control the results and when they are delivered.
type MockModel struct {
	kind Kind

	mu        sync.Mutex
	result    Result
	err       error
	delay     time.Duration
	async     bool
	opts      Options
	onResults func(Result)
	sent      int
}

// NewMockModel creates a new MockModel of the given kind.
func NewMockModel(kind Kind) *MockModel {
	return &MockModel{kind: kind, opts: DefaultOptions(kind)}
}

// Kind returns the model kind.
func (m *MockModel) Kind() Kind { return m.kind }

// SetOptions records the options.
func (m *MockModel) SetOptions(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
}

// Options returns the last options set.
func (m *MockModel) Options() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// OnResults registers the result callback.
func (m *MockModel) OnResults(cb func(Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResults = cb
}

// SetHands sets the hands delivered for every frame.
func (m *MockModel) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result.Hands = hands
}

// SetFace sets the face landmarks delivered for every frame.
func (m *MockModel) SetFace(face []Landmark) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result.Face = face
}

// SetPose sets the pose landmarks delivered for every frame.
func (m *MockModel) SetPose(pose []Landmark) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result.Pose = pose
}

// SetError sets the error returned by Send.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Send wait before delivering. With async set, the callback
// fires from another goroutine after Send has already returned.
func (m *MockModel) SetDelay(d time.Duration, async bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	m.async = async
}

// Sent returns how many frames were accepted.
func (m *MockModel) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Send delivers the configured result or returns the configured error.
func (m *MockModel) Send(ctx context.Context, req Request) error {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	m.sent++
	result := m.result
	result.Kind = m.kind
	result.Seq = req.Seq
	cb := m.onResults
	delay := m.delay
	async := m.async
	m.mu.Unlock()

	deliver := func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		if cb != nil {
			cb(result)
		}
	}

	if async {
		go deliver()
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	deliver()
	return nil
}

// Close is a no-op for the mock model.
func (m *MockModel) Close() error {
	return nil
}

// finger layout used by SyntheticHand, thumb first
var fingerX = [5]float64{0.62, 0.56, 0.50, 0.45, 0.40}

// SyntheticHand builds a right-facing hand whose fingers are extended
// (pointing up) or curled according to extended, thumb first.
func SyntheticHand(handedness string, extended [5]bool) Hand {
	h := Hand{Handedness: handedness, Score: 0.95}

	h.Points[Wrist] = Landmark{X: 0.5, Y: 0.8}
	h.Points[ThumbCMC] = Landmark{X: 0.56, Y: 0.75}
	h.Points[ThumbMCP] = Landmark{X: 0.60, Y: 0.70}
	if extended[0] {
		h.Points[ThumbIP] = Landmark{X: 0.64, Y: 0.60}
		h.Points[ThumbTip] = Landmark{X: 0.68, Y: 0.50}
	} else {
		h.Points[ThumbIP] = Landmark{X: 0.58, Y: 0.70, Z: -0.02}
		h.Points[ThumbTip] = Landmark{X: 0.55, Y: 0.72, Z: -0.02}
	}

	for f := 1; f < 5; f++ {
		base := FingerBases[f]
		x := fingerX[f]
		h.Points[base] = Landmark{X: x, Y: 0.68}
		if extended[f] {
			h.Points[base+1] = Landmark{X: x, Y: 0.55}
			h.Points[base+2] = Landmark{X: x, Y: 0.45}
			h.Points[base+3] = Landmark{X: x, Y: 0.35}
		} else {
			h.Points[base+1] = Landmark{X: x, Y: 0.66, Z: -0.05}
			h.Points[base+2] = Landmark{X: x - 0.02, Y: 0.68, Z: -0.04}
			h.Points[base+3] = Landmark{X: x - 0.03, Y: 0.70, Z: -0.02}
		}
	}

	return h
}

// OpenPalmHand returns a hand with all fingers extended.
func OpenPalmHand() Hand {
	return SyntheticHand(Right, [5]bool{true, true, true, true, true})
}

// FistHand returns a hand with all fingers curled.
func FistHand() Hand {
	return SyntheticHand(Right, [5]bool{})
}

// PointingHand returns a hand with only the index finger extended.
func PointingHand() Hand {
	return SyntheticHand(Right, [5]bool{false, true, false, false, false})
}

// PeaceHand returns a hand with index and middle fingers extended.
func PeaceHand() Hand {
	return SyntheticHand(Right, [5]bool{false, true, true, false, false})
}

// PinchHand returns a hand with thumb and index extended.
func PinchHand() Hand {
	return SyntheticHand(Right, [5]bool{true, true, false, false, false})
}

// ThumbsUpHand returns a hand with only the thumb extended.
func ThumbsUpHand() Hand {
	return SyntheticHand(Right, [5]bool{true, false, false, false, false})
}

// OKHand returns a hand whose thumb and index tips touch while the other
// three fingers are extended.
func OKHand() Hand {
	h := SyntheticHand(Right, [5]bool{false, false, true, true, true})
	h.Points[IndexTip] = Landmark{X: 0.56, Y: 0.66}
	h.Points[ThumbTip] = Landmark{X: 0.58, Y: 0.66}
	return h
}

// HandAt returns a hand whose index tip sits at (x, y) with the thumb tip
// placed dist to its right, so the pinch distance equals dist.
func HandAt(handedness string, x, y, dist float64) Hand {
	h := OpenPalmHand()
	h.Handedness = handedness
	h.Points[IndexTip] = Landmark{X: x, Y: y}
	h.Points[ThumbTip] = Landmark{X: x + dist, Y: y}
	return h
}
