// Package gesture derives discrete gestures and motion metrics from hand
// landmarks: the pinch-to-draw state machine, a finger-extension classifier
// and per-hand motion tracking.
package gesture

import "github.com/ayusman/airsketch/internal/detector"

// ExtensionMargin is how far above its base a fingertip must be to count as extended.
const ExtensionMargin = 0.05

// Label is a classified static hand gesture.
type Label string

const (
	NoHand   Label = "none"
	Fist     Label = "fist"
	OpenPalm Label = "open_palm"
	Pointing Label = "pointing"
	Peace    Label = "peace"
	Pinch    Label = "pinch"
	OK       Label = "ok"
	Custom   Label = "custom"
)

// Finger indexes into FingersExtended.
const (
	Thumb = iota
	Index
	Middle
	Ring
	Pinky
)

// FingersExtended reports per finger whether its tip lies above its base by
// more than ExtensionMargin. Image y grows downwards.
func FingersExtended(hand *detector.Hand) [5]bool {
	var out [5]bool
	for i := range out {
		tip := hand.Points[detector.FingerTips[i]]
		base := hand.Points[detector.FingerBases[i]]
		out[i] = tip.Y < base.Y-ExtensionMargin
	}
	return out
}

// Classify maps a hand to a Label. A nil hand is NoHand.
func Classify(hand *detector.Hand) Label {
	if hand == nil {
		return NoHand
	}

	ext := FingersExtended(hand)
	count := 0
	for _, e := range ext {
		if e {
			count++
		}
	}

	switch {
	case count == 0:
		return Fist
	case count == 5:
		return OpenPalm
	case ext[Thumb] && ext[Index] && !ext[Middle] && !ext[Ring] && !ext[Pinky]:
		return Pinch
	// The thumb is ignored for pointing and peace.
	case ext[Index] && !ext[Middle] && !ext[Ring] && !ext[Pinky]:
		return Pointing
	case ext[Index] && ext[Middle] && !ext[Ring] && !ext[Pinky]:
		return Peace
	case PinchDistance(hand) < PinchThreshold && ext[Middle] && ext[Ring] && ext[Pinky]:
		return OK
	default:
		return Custom
	}
}
