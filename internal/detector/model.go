package detector

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the inference script for a model cannot be located.
var ErrServiceNotFound = errors.New("model service not found")

// Options configures an external model. Fields that do not apply to a model kind are ignored.
type Options struct {
	MaxHands               int     `json:"maxNumHands,omitempty"`
	MaxFaces               int     `json:"maxNumFaces,omitempty"`
	ModelComplexity        int     `json:"modelComplexity"`
	RefineLandmarks        bool    `json:"refineLandmarks,omitempty"`
	SmoothLandmarks        bool    `json:"smoothLandmarks,omitempty"`
	MinDetectionConfidence float64 `json:"minDetectionConfidence"`
	MinTrackingConfidence  float64 `json:"minTrackingConfidence"`
}

// DefaultOptions returns the options used for a model kind.
func DefaultOptions(kind Kind) Options {
	opts := Options{
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
	switch kind {
	case KindHands:
		opts.MaxHands = 2
	case KindFace:
		opts.MaxFaces = 1
	case KindPose:
		opts.SmoothLandmarks = true
	}
	return opts
}

// Request is one frame sent to a model.
type Request struct {
	Seq   uint64
	Image *gocv.Mat
}

// Model is an external landmark detector. Results are delivered through the
// callback registered with OnResults, which may run on any goroutine and
// may be invoked after Send returns.
type Model interface {
	Kind() Kind

	// SetOptions replaces the model options; they apply from the next frame.
	SetOptions(opts Options)

	// OnResults registers the callback receiving one Result per accepted Request.
	OnResults(cb func(Result))

	// Send submits a frame for inference. A non-nil error means no result
	// will be delivered for this request.
	Send(ctx context.Context, req Request) error

	// Close releases any resources held by the model.
	Close() error
}
