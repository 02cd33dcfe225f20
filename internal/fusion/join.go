// Package fusion fans a camera frame out to every enabled landmark model and
// joins their asynchronous results into one detector.Frame.
package fusion

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

	"github.com/ayusman/airsketch/internal/detector"
)

// ErrBusy is returned when a frame is submitted while another is in flight.
// The frame is dropped, never queued.
var ErrBusy = errors.New("a frame is already in flight")

// DefaultTimeout bounds how long Process waits for model callbacks.
const DefaultTimeout = time.Second

// Options configures a Join.
type Options struct {
	// Timeout after which Process returns whatever has arrived. Zero uses
	// DefaultTimeout; negative waits for ctx only.
	Timeout time.Duration
	Clock   func() time.Time
	Logger  zerolog.Logger
}

// flight is the combined record of one frame being processed.
type flight struct {
	seq       uint64
	mu        sync.Mutex
	frame     detector.Frame
	remaining int
	done      chan struct{}
}

// settle counts one expected callback as finished.
func (f *flight) settle(r *detector.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining == 0 {
		return
	}
	if r != nil {
		f.frame.Merge(*r)
	}
	f.remaining--
	if f.remaining == 0 {
		close(f.done)
	}
}

func (f *flight) snapshot() detector.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

// Join dispatches frames to models and collects their results.
type Join struct {
	models  []detector.Model
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger

	busy atomic.Bool
	seq  atomic.Uint64

	mu       sync.Mutex
	enabled  map[detector.Kind]bool
	inflight *flight

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// NewJoin wires the result callback of every model. All models start enabled.
func NewJoin(models []detector.Model, opts Options) *Join {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	j := &Join{
		models:  models,
		timeout: opts.Timeout,
		now:     opts.Clock,
		log:     opts.Logger,
		enabled: make(map[detector.Kind]bool, len(models)),
	}
	for _, m := range models {
		j.enabled[m.Kind()] = true
		m.OnResults(j.deliver)
	}
	return j
}

// deliver routes a model result into the frame it belongs to. Results for
// frames that already completed are ignored.
func (j *Join) deliver(r detector.Result) {
	j.mu.Lock()
	f := j.inflight
	j.mu.Unlock()

	if f == nil || f.seq != r.Seq {
		j.log.Debug().Uint64("seq", r.Seq).Str("model", string(r.Kind)).Msg("late result ignored")
		return
	}
	f.settle(&r)
}

// SetEnabled turns a model on or off from the next frame. It reports
// whether a model of that kind exists.
func (j *Join) SetEnabled(kind detector.Kind, on bool) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.enabled[kind]; !ok {
		return false
	}
	j.enabled[kind] = on
	return true
}

// Enabled reports whether the model of kind is present and enabled.
func (j *Join) Enabled(kind detector.Kind) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enabled[kind]
}

// Stats returns how many frames were processed and dropped.
func (j *Join) Stats() (processed, dropped uint64) {
	return j.processed.Load(), j.dropped.Load()
}

// Process sends img to every enabled model and waits until each has
// reported, failed, or the wait is cut short by ctx or the timeout. A model
// error leaves that model's part of the frame empty without failing the frame.
func (j *Join) Process(ctx context.Context, img *gocv.Mat) (detector.Frame, error) {
	if !j.busy.CompareAndSwap(false, true) {
		j.dropped.Add(1)
		return detector.Frame{}, ErrBusy
	}
	defer j.busy.Store(false)

	seq := j.seq.Add(1)

	j.mu.Lock()
	active := make([]detector.Model, 0, len(j.models))
	for _, m := range j.models {
		if j.enabled[m.Kind()] {
			active = append(active, m)
		}
	}
	f := &flight{
		seq:       seq,
		frame:     detector.Frame{Seq: seq, Timestamp: j.now().UnixMilli()},
		remaining: len(active),
		done:      make(chan struct{}),
	}
	if len(active) == 0 {
		close(f.done)
	}
	j.inflight = f
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.inflight = nil
		j.mu.Unlock()
	}()

	req := detector.Request{Seq: seq, Image: img}
	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	for _, m := range active {
		g.Go(func() error {
			if err := m.Send(ctx, req); err != nil {
				failed.Add(1)
				f.settle(nil)
				return fmt.Errorf("%s model: %w", m.Kind(), err)
			}
			return nil
		})
	}
	// A failed model leaves its part of the frame empty.
	if err := g.Wait(); err != nil {
		j.log.Warn().Err(err).Int32("failed", failed.Load()).Uint64("seq", seq).Msg("model failed")
	}

	var timeout <-chan time.Time
	if j.timeout > 0 {
		t := time.NewTimer(j.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-f.done:
	case <-timeout:
		j.log.Warn().Uint64("seq", seq).Dur("timeout", j.timeout).Msg("models did not report in time")
	case <-ctx.Done():
		return f.snapshot(), fmt.Errorf("process frame %d: %w", seq, ctx.Err())
	}

	j.processed.Add(1)
	return f.snapshot(), nil
}

// Close closes every model.
func (j *Join) Close() error {
	var errs []error
	for _, m := range j.models {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", m.Kind(), err))
		}
	}
	return errors.Join(errs...)
}
