package capture

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Camera acquisition failures. Open wraps the underlying error with one of these.
var (
	ErrCameraNotOpen    = errors.New("camera is not open")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrDeviceBusy       = errors.New("camera is in use by another application")
	ErrNoDevice         = errors.New("no camera found")
)

// ErrorKind classifies a camera acquisition failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindBusy
	KindDenied
	KindAbsent
)

func (k ErrorKind) String() string {
	switch k {
	case KindBusy:
		return "busy"
	case KindDenied:
		return "denied"
	case KindAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by Camera.Open to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrDeviceBusy), errors.Is(err, syscall.EBUSY):
		return KindBusy
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, os.ErrPermission):
		return KindDenied
	case errors.Is(err, ErrNoDevice), errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENODEV):
		return KindAbsent
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "busy"), strings.Contains(msg, "in use"):
		return KindBusy
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not allowed"), strings.Contains(msg, "denied"):
		return KindDenied
	case strings.Contains(msg, "no such device"), strings.Contains(msg, "not found"), strings.Contains(msg, "no camera"):
		return KindAbsent
	}
	return KindUnknown
}

// probeDevice inspects the V4L2 node of a device to explain why it could not
// be opened. It returns nil when nothing more specific is known.
func probeDevice(deviceID int) error {
	path := fmt.Sprintf("/dev/video%d", deviceID)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		f.Close()
		return nil
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNoDevice, path)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %s", ErrDeviceBusy, path)
	}
	return nil
}
