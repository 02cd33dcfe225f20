package effects

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/detector"
)

// PoseVisibility is the visibility above which pose joints and bones are drawn.
const PoseVisibility = 0.5

// NumPoseLandmarks is the landmark count of a full-body pose.
const NumPoseLandmarks = 33

var (
	errNoLandmarks = errors.New("no landmarks")
	handLabelShift = image.Pt(-20, 20)
)

// DrawHand draws the skeleton of hand onto layer: bones (palm included),
// joints, highlighted fingertips and the handedness label under the wrist.
func DrawHand(layer *gocv.Mat, hand *detector.Hand) error {
	if hand == nil {
		return errNoLandmarks
	}
	w, h := layer.Cols(), layer.Rows()

	for _, c := range detector.HandConnections {
		gocv.Line(layer, ToPixel(hand.Points[c[0]], w, h), ToPixel(hand.Points[c[1]], w, h), Cyan, 2)
	}
	for _, p := range hand.Points {
		gocv.Circle(layer, ToPixel(p, w, h), 4, White, -1)
	}
	for _, t := range detector.FingerTips {
		gocv.Circle(layer, ToPixel(hand.Points[t], w, h), 7, Magenta, -1)
	}
	if hand.Handedness != "" {
		org := ToPixel(hand.Points[detector.Wrist], w, h).Add(handLabelShift)
		gocv.PutText(layer, hand.Handedness, org, gocv.FontHersheySimplex, 0.6, Yellow, 2)
	}
	return nil
}

// DrawFace draws every face landmark as a dot with the key points enlarged.
func DrawFace(layer *gocv.Mat, face []detector.Landmark) error {
	if len(face) == 0 {
		return errNoLandmarks
	}
	maxKey := 0
	for _, k := range detector.FaceKeyPoints {
		maxKey = max(maxKey, k)
	}
	if len(face) <= maxKey {
		return fmt.Errorf("face mesh has %d landmarks, need more than %d", len(face), maxKey)
	}

	w, h := layer.Cols(), layer.Rows()
	for _, p := range face {
		gocv.Circle(layer, ToPixel(p, w, h), 1, WithAlpha(Cyan, 0.6), -1)
	}
	for _, k := range detector.FaceKeyPoints {
		gocv.Circle(layer, ToPixel(face[k], w, h), 3, Magenta, -1)
	}
	return nil
}

// DrawPose draws bones whose both ends are visible and visible joints. It
// returns the fraction of visible landmarks.
func DrawPose(layer *gocv.Mat, pose []detector.Landmark) (float64, error) {
	if len(pose) == 0 {
		return 0, errNoLandmarks
	}
	if len(pose) < NumPoseLandmarks {
		return 0, fmt.Errorf("pose has %d landmarks, want %d", len(pose), NumPoseLandmarks)
	}

	w, h := layer.Cols(), layer.Rows()
	for _, c := range detector.PoseConnections {
		a, b := pose[c[0]], pose[c[1]]
		if a.Visible(PoseVisibility) && b.Visible(PoseVisibility) {
			gocv.Line(layer, ToPixel(a, w, h), ToPixel(b, w, h), Green, 3)
		}
	}
	for _, p := range pose {
		if p.Visible(PoseVisibility) {
			gocv.Circle(layer, ToPixel(p, w, h), 5, Yellow, -1)
		}
	}
	return VisibleRatio(pose), nil
}

// VisibleRatio is the fraction of landmarks with visibility above PoseVisibility.
func VisibleRatio(pose []detector.Landmark) float64 {
	if len(pose) == 0 {
		return 0
	}
	n := 0
	for _, p := range pose {
		if p.Visible(PoseVisibility) {
			n++
		}
	}
	return float64(n) / float64(len(pose))
}
