package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/airsketch/internal/capture"
	"github.com/ayusman/airsketch/internal/detector"
	"github.com/ayusman/airsketch/internal/fusion"
	"github.com/ayusman/airsketch/internal/telemetry"
)

// Loop timing constants.
const (
	// ParticleInterval throttles the particle loop to 60 Hz.
	ParticleInterval = time.Second / 60
	// DefaultJPEGQuality is the quality of frames served to the stream.
	DefaultJPEGQuality = 80
)

// Mode selects the landmark consumer.
type Mode string

const (
	ModePaint     Mode = "paint"
	ModeDashboard Mode = "dashboard"
)

// CameraError wraps a failure to acquire the camera with its user-facing
// description.
type CameraError struct {
	Message CameraErrorMessage
	Err     error
}

func (e *CameraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message.Title, e.Err)
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// Config holds the collaborators of an App.
type Config struct {
	Mode     Mode
	Camera   capture.Camera
	Models   []detector.Model
	Consumer Consumer
	// Gate is optional. When set, frames without motion skip detection and
	// the capture rate follows the gate.
	Gate        *capture.ActivityGate
	JoinTimeout time.Duration
	JPEGQuality int
	Telemetry   *telemetry.Instruments
	Logger      zerolog.Logger
	Clock       func() time.Time
}

// App feeds camera frames through the landmark models into a consumer and
// keeps the latest composited frame for streaming.
type App struct {
	cfg      Config
	join     *fusion.Join
	consumer Consumer
	log      zerolog.Logger
	now      func() time.Time

	enabled atomic.Bool

	mu       sync.RWMutex
	latest   []byte
	last     Update
	handlers []func(Update)
}

// New wires an App. The camera is not opened until Run.
func New(cfg Config) (*App, error) {
	if cfg.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if cfg.Consumer == nil {
		return nil, errors.New("app: consumer is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModePaint
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	a := &App{
		cfg:      cfg,
		consumer: cfg.Consumer,
		log:      cfg.Logger,
		now:      cfg.Clock,
		join: fusion.NewJoin(cfg.Models, fusion.Options{
			Timeout: cfg.JoinTimeout,
			Clock:   cfg.Clock,
			Logger:  cfg.Logger,
		}),
	}
	a.enabled.Store(true)
	return a, nil
}

// SetEnabled pauses or resumes landmark detection. While paused, frames are
// still displayed but carry no landmarks.
func (a *App) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
	a.log.Info().Bool("enabled", enabled).Msg("Tracking toggled")
}

// IsEnabled returns whether landmark detection is running.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// SetModel enables or disables one landmark model.
func (a *App) SetModel(kind detector.Kind, on bool) bool {
	return a.join.SetEnabled(kind, on)
}

// Mode returns the consumer mode.
func (a *App) Mode() Mode {
	return a.cfg.Mode
}

// Consumer returns the landmark consumer.
func (a *App) Consumer() Consumer {
	return a.consumer
}

// Stats returns how many frames were processed and dropped by the join.
func (a *App) Stats() (processed, dropped uint64) {
	return a.join.Stats()
}

// OnUpdate registers fn to receive every telemetry update. fn runs on the
// camera loop and must not block.
func (a *App) OnUpdate(fn func(Update)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, fn)
}

// LatestJPEG returns the most recent composited frame, or nil before the
// first frame.
func (a *App) LatestJPEG() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// LatestUpdate returns the most recent telemetry update.
func (a *App) LatestUpdate() Update {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Run opens the camera and runs the frame and particle loops until ctx is
// cancelled. A camera that cannot be opened yields a *CameraError.
func (a *App) Run(ctx context.Context) error {
	if err := a.cfg.Camera.Open(); err != nil {
		msg := DescribeCameraError(err)
		a.log.Error().Err(err).Str("kind", msg.Kind).Msg(msg.Title)
		return &CameraError{Message: msg, Err: err}
	}
	defer func() {
		if err := a.cfg.Camera.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Error closing camera")
		}
	}()

	a.log.Info().Str("mode", string(a.cfg.Mode)).Int("fps", a.cfg.Camera.FPS()).Msg("Pipeline started")
	defer a.log.Info().Msg("Pipeline stopped")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.frameLoop(ctx) })
	g.Go(func() error { return a.particleLoop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) frameLoop(ctx context.Context) error {
	fps := a.cfg.Camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := a.cfg.Camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return err
			}
			a.log.Debug().Err(err).Msg("Frame read failed")
			continue
		}

		if a.cfg.Gate != nil {
			_, _ = a.cfg.Gate.Observe(frame)
			if next := a.cfg.Gate.FPS(); next != fps {
				fps = next
				a.cfg.Camera.SetFPS(fps)
				ticker.Reset(time.Second / time.Duration(fps))
				a.log.Debug().Int("fps", fps).Msg("Capture rate changed")
			}
		}

		err = a.ProcessFrame(ctx, frame)
		frame.Close()
		if err != nil && !errors.Is(err, fusion.ErrBusy) {
			return err
		}
	}
}

func (a *App) particleLoop(ctx context.Context) error {
	ticker := time.NewTicker(ParticleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.consumer.TickParticles(a.now())
		}
	}
}

// ProcessFrame runs one frame through detection and the consumer, then
// publishes the composited frame and telemetry. It returns fusion.ErrBusy
// when another frame is still in flight.
func (a *App) ProcessFrame(ctx context.Context, img *gocv.Mat) error {
	var landmarks detector.Frame
	if a.detecting() {
		f, err := a.join.Process(ctx, img)
		switch {
		case errors.Is(err, fusion.ErrBusy):
			if a.cfg.Telemetry != nil {
				a.cfg.Telemetry.FrameDropped(ctx, string(a.cfg.Mode))
			}
			return err
		case err != nil:
			return err
		}
		landmarks = f
	} else {
		landmarks = detector.Frame{Timestamp: a.now().UnixMilli()}
	}

	a.consumer.HandleFrame(img, landmarks)
	if a.cfg.Telemetry != nil {
		a.cfg.Telemetry.FrameProcessed(ctx, string(a.cfg.Mode))
	}
	a.publish(landmarks)
	return nil
}

// detecting reports whether this frame goes through the models.
func (a *App) detecting() bool {
	if !a.enabled.Load() {
		return false
	}
	return a.cfg.Gate == nil || a.cfg.Gate.Active()
}

func (a *App) publish(landmarks detector.Frame) {
	var jpeg []byte
	out, err := a.consumer.Compose()
	if err != nil {
		a.log.Warn().Err(err).Msg("Compose failed")
	} else {
		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{gocv.IMWriteJpegQuality, a.cfg.JPEGQuality})
		if err != nil {
			a.log.Warn().Err(err).Msg("JPEG encode failed")
		} else {
			jpeg = append([]byte(nil), buf.GetBytes()...)
			buf.Close()
		}
		out.Close()
	}

	u := Update{
		Mode:      string(a.cfg.Mode),
		Seq:       landmarks.Seq,
		Timestamp: landmarks.Timestamp,
		Frame:     landmarks,
		State:     a.consumer.State(),
	}

	a.mu.Lock()
	if jpeg != nil {
		a.latest = jpeg
	}
	a.last = u
	handlers := a.handlers
	a.mu.Unlock()

	for _, fn := range handlers {
		fn(u)
	}
}

// Close releases the models and the consumer. Run must have returned.
func (a *App) Close() error {
	var errs []error
	if err := a.join.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.cfg.Gate != nil {
		a.cfg.Gate.Close()
	}
	if err := a.consumer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
