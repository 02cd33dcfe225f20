// Package app runs the camera and particle loops and hosts the two landmark
// consumers: the air-drawing Painter and the visualization Dashboard.
package app

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/detector"
)

// Consumer turns landmark frames into a composited display.
// Implementations serialize their own state.
type Consumer interface {
	// HandleFrame processes the landmarks detected on img. img is only
	// valid for the duration of the call.
	HandleFrame(img *gocv.Mat, frame detector.Frame)
	// TickParticles advances particle animation; called at up to 60 Hz.
	TickParticles(now time.Time)
	// Compose renders the current display frame as a BGR Mat owned by the caller.
	Compose() (gocv.Mat, error)
	// State returns a JSON-encodable snapshot for telemetry.
	State() any
	// LiveParticles returns the live particle count.
	LiveParticles() int
	Close() error
}

// Update is one telemetry message, published after every processed frame.
type Update struct {
	Mode      string         `json:"mode"`
	Seq       uint64         `json:"seq"`
	Timestamp int64          `json:"timestamp"`
	Frame     detector.Frame `json:"landmarks"`
	State     any            `json:"state"`
}

// keepFrame replaces dst with a copy of img, or empties it when img is nil.
func keepFrame(dst *gocv.Mat, img *gocv.Mat) {
	if img == nil || img.Empty() {
		if !dst.Empty() {
			dst.Close()
			*dst = gocv.NewMat()
		}
		return
	}
	img.CopyTo(dst)
}
