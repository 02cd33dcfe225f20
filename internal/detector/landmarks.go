// Package detector defines the landmark types produced by the external
// MediaPipe models and the Model interface used to drive them.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the hand model.
const (
	Left  = "Left"
	Right = "Right"
)

// FingerTips lists the tip landmark of each finger, thumb first.
var FingerTips = [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// FingerBases lists the joint each tip is compared against, thumb first.
var FingerBases = [5]int{ThumbMCP, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

// HandConnections are the skeleton edges drawn between hand landmarks.
var HandConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{0, 9}, {9, 10}, {10, 11}, {11, 12},
	{0, 13}, {13, 14}, {14, 15}, {15, 16},
	{0, 17}, {17, 18}, {18, 19}, {19, 20},
	{5, 9}, {9, 13}, {13, 17},
}

// PoseConnections are the skeleton edges drawn between the 33 pose landmarks.
var PoseConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 7},
	{0, 4}, {4, 5}, {5, 6}, {6, 8},
	{9, 10},
	{11, 12},
	{11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21},
	{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22},
	{11, 23}, {12, 24}, {23, 24},
	{23, 25}, {25, 27}, {27, 29}, {27, 31},
	{24, 26}, {26, 28}, {28, 30}, {28, 32},
}

// FaceKeyPoints are face mesh indices highlighted by the overlay
// (nose bridge, eye corners, mouth corners).
var FaceKeyPoints = []int{1, 4, 5, 195, 168, 33, 263, 61, 291}

// Landmark is a normalized point: X and Y in [0,1] of the frame, Z a relative depth.
// Visibility is only reported by the pose model.
type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Visible reports whether the landmark's visibility exceeds threshold.
// Landmarks without a visibility score are never visible.
func (l Landmark) Visible(threshold float64) bool {
	return l.Visibility != nil && *l.Visibility > threshold
}

// Distance2D returns the Euclidean distance between a and b in the image plane.
func Distance2D(a, b Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Hand is the set of 21 landmarks reported for one detected hand.
type Hand struct {
	Points     [NumLandmarks]Landmark `json:"points"`
	Handedness string                 `json:"handedness"` // "Left" or "Right"
	Score      float64                `json:"score"`
}

// Kind identifies an external landmark model.
type Kind string

const (
	KindHands Kind = "hands"
	KindFace  Kind = "face"
	KindPose  Kind = "pose"
)

// Kinds lists every model kind in dispatch order.
var Kinds = []Kind{KindHands, KindFace, KindPose}

// Result is what a single model reports for one frame.
type Result struct {
	Seq   uint64
	Kind  Kind
	Hands []Hand
	Face  []Landmark
	Pose  []Landmark
}

// Frame is the combined landmark record for one processed camera frame.
// Only the parts produced by enabled models are populated.
type Frame struct {
	Seq       uint64     `json:"seq"`
	Timestamp int64      `json:"timestamp"`
	Hands     []Hand     `json:"hands,omitempty"`
	Face      []Landmark `json:"face,omitempty"`
	Pose      []Landmark `json:"pose,omitempty"`
}

// Merge copies the part of r owned by its model kind into f.
func (f *Frame) Merge(r Result) {
	switch r.Kind {
	case KindHands:
		f.Hands = r.Hands
	case KindFace:
		f.Face = r.Face
	case KindPose:
		f.Pose = r.Pose
	}
}
