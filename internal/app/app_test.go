package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/airsketch/internal/capture"
	"github.com/ayusman/airsketch/internal/detector"
	"github.com/ayusman/airsketch/internal/effects"
)

func TestDescribeCameraError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  string
		title string
	}{
		{"busy", fmt.Errorf("open camera 0: %w", capture.ErrDeviceBusy), "busy", "Camera is in use"},
		{"denied", fmt.Errorf("open camera 0: %w", capture.ErrPermissionDenied), "denied", "Camera access denied"},
		{"absent", fmt.Errorf("open camera 3: %w", capture.ErrNoDevice), "absent", "No camera found"},
		{"unknown", errors.New("driver exploded"), "unknown", "Camera unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := DescribeCameraError(tt.err)
			if msg.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", msg.Kind, tt.kind)
			}
			if msg.Title != tt.title {
				t.Errorf("Title = %q, want %q", msg.Title, tt.title)
			}
			if msg.Remedy == "" {
				t.Error("Remedy is empty")
			}
			if msg.Detail != tt.err.Error() {
				t.Errorf("Detail = %q", msg.Detail)
			}
		})
	}
}

func newFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(testHeight, testWidth, gocv.MatTypeCV8UC3)
	gocv.Circle(&m, image.Pt(100, 100), 20, effects.White, -1)
	t.Cleanup(func() { m.Close() })
	return &m
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) add(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func newTestApp(t *testing.T, models ...detector.Model) (*App, *capture.MockCamera) {
	t.Helper()
	cam := capture.NewMockCamera([]*gocv.Mat{newFrame(t)}, true)
	painter := newTestPainter(t, PainterConfig{})
	a, err := New(Config{
		Mode:     ModePaint,
		Camera:   cam,
		Models:   models,
		Consumer: painter,
		Clock:    fixedClock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, cam
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Consumer: &Painter{}}); err == nil {
		t.Error("expected error without camera")
	}
	if _, err := New(Config{Camera: capture.NewMockCamera(nil, false)}); err == nil {
		t.Error("expected error without consumer")
	}
}

func TestApp_ProcessFrame(t *testing.T) {
	hands := detector.NewMockModel(detector.KindHands)
	hands.SetHands([]detector.Hand{pinched(0.5, 0.5)})
	a, _ := newTestApp(t, hands)

	rec := &recorder{}
	a.OnUpdate(rec.add)

	if a.LatestJPEG() != nil {
		t.Fatal("LatestJPEG() before the first frame should be nil")
	}
	if err := a.ProcessFrame(context.Background(), newFrame(t)); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	jpeg := a.LatestJPEG()
	if len(jpeg) < 3 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		t.Errorf("LatestJPEG() is not a JPEG (%d bytes)", len(jpeg))
	}
	if rec.len() != 1 {
		t.Fatalf("updates = %d, want 1", rec.len())
	}
	u := a.LatestUpdate()
	if u.Mode != "paint" || u.Seq != 1 || len(u.Frame.Hands) != 1 {
		t.Errorf("update = %+v", u)
	}
	st, ok := u.State.(PainterState)
	if !ok || st.Pinch != "drawing" {
		t.Errorf("state = %#v", u.State)
	}
	if processed, dropped := a.Stats(); processed != 1 || dropped != 0 {
		t.Errorf("Stats() = %d, %d", processed, dropped)
	}
}

func TestApp_DisabledSkipsModels(t *testing.T) {
	hands := detector.NewMockModel(detector.KindHands)
	hands.SetHands([]detector.Hand{pinched(0.5, 0.5)})
	a, _ := newTestApp(t, hands)

	a.SetEnabled(false)
	if a.IsEnabled() {
		t.Fatal("IsEnabled() = true after SetEnabled(false)")
	}
	if err := a.ProcessFrame(context.Background(), newFrame(t)); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if hands.Sent() != 0 {
		t.Errorf("model received %d frames while disabled", hands.Sent())
	}
	if got := a.LatestUpdate().Frame.Hands; len(got) != 0 {
		t.Errorf("hands = %v, want none", got)
	}
	if a.LatestJPEG() == nil {
		t.Error("frames should still be displayed while disabled")
	}
}

func TestApp_SetModel(t *testing.T) {
	hands := detector.NewMockModel(detector.KindHands)
	a, _ := newTestApp(t, hands)

	if !a.SetModel(detector.KindHands, false) {
		t.Error("SetModel(hands) = false for a configured model")
	}
	if a.SetModel(detector.KindPose, true) {
		t.Error("SetModel(pose) = true without a pose model")
	}
	if err := a.ProcessFrame(context.Background(), newFrame(t)); err != nil {
		t.Fatal(err)
	}
	if hands.Sent() != 0 {
		t.Errorf("disabled model received %d frames", hands.Sent())
	}
}

func TestApp_RunCameraError(t *testing.T) {
	a, cam := newTestApp(t)
	cam.FailOpen(fmt.Errorf("open camera 0: %w", capture.ErrDeviceBusy))

	err := a.Run(context.Background())
	var camErr *CameraError
	if !errors.As(err, &camErr) {
		t.Fatalf("Run() error = %v, want *CameraError", err)
	}
	if camErr.Message.Kind != "busy" {
		t.Errorf("Kind = %q, want busy", camErr.Message.Kind)
	}
	if !errors.Is(err, capture.ErrDeviceBusy) {
		t.Error("CameraError does not unwrap to ErrDeviceBusy")
	}
}

func TestApp_RunUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping loop test")
	}
	hands := detector.NewMockModel(detector.KindHands)
	hands.SetHands([]detector.Hand{released(0.5, 0.5)})
	a, cam := newTestApp(t, hands)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for cam.Reads() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if cam.Reads() < 3 {
		t.Errorf("camera reads = %d, want at least 3", cam.Reads())
	}
	if cam.IsOpen() {
		t.Error("camera still open after Run returned")
	}
	if a.LatestJPEG() == nil {
		t.Error("no frame was published")
	}
}

func TestApp_GateThrottlesStillScene(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping loop test")
	}
	hands := detector.NewMockModel(detector.KindHands)
	cam := capture.NewMockCamera([]*gocv.Mat{newFrame(t)}, true)
	gate := capture.NewActivityGate(capture.GateConfig{IdleFPS: 5, ActiveFPS: 30})
	a, err := New(Config{
		Mode:     ModePaint,
		Camera:   cam,
		Models:   []detector.Model{hands},
		Consumer: newTestPainter(t, PainterConfig{}),
		Gate:     gate,
		Clock:    fixedClock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(cam.Rates()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rates := cam.Rates(); len(rates) == 0 || rates[0] != 5 {
		t.Errorf("Rates() = %v, want idle rate 5 first", rates)
	}
	if hands.Sent() != 0 {
		t.Errorf("model received %d frames from a still scene", hands.Sent())
	}
	if a.LatestJPEG() == nil {
		t.Error("still frames should still be displayed")
	}
}
