package app

import "github.com/ayusman/airsketch/internal/capture"

// CameraErrorMessage is the user-facing explanation of a camera failure.
type CameraErrorMessage struct {
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Remedy string `json:"remedy"`
	Detail string `json:"detail,omitempty"`
}

// DescribeCameraError maps a camera acquisition error to a message with a
// remedy. There is no automatic retry; every remedy ends in a restart.
func DescribeCameraError(err error) CameraErrorMessage {
	kind := capture.Classify(err)
	msg := CameraErrorMessage{Kind: kind.String()}
	if err != nil {
		msg.Detail = err.Error()
	}

	switch kind {
	case capture.KindBusy:
		msg.Title = "Camera is in use"
		msg.Remedy = "Close other applications using the camera (video calls, other browsers or recorders), then restart airsketch."
	case capture.KindDenied:
		msg.Title = "Camera access denied"
		msg.Remedy = "Grant this user access to the camera device (for example add it to the video group) and restart airsketch."
	case capture.KindAbsent:
		msg.Title = "No camera found"
		msg.Remedy = "Connect a camera or set camera.device to an existing device, then restart airsketch."
	default:
		msg.Title = "Camera unavailable"
		msg.Remedy = "Check the camera connection and drivers, then restart airsketch."
	}
	return msg
}
