// Package telemetry exposes the OpenTelemetry instruments recorded by the frame pipeline.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ayusman/airsketch"

// Instruments groups the counters and gauges used by the app.
// The zero value is not usable; create one with New.
type Instruments struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	exports   metric.Int64Counter
	particles metric.Int64ObservableGauge
	reg       metric.Registration
	source    atomic.Pointer[func() int]
}

// New creates the instruments on the global meter provider (no-op unless one is installed).
// liveParticles is sampled whenever the gauge is collected; it may be nil and
// set later with SetParticleSource.
func New(liveParticles func() int) (*Instruments, error) {
	return NewWithMeter(otel.Meter(instrumentationName), liveParticles)
}

// NewWithMeter creates the instruments on the given meter.
func NewWithMeter(m metric.Meter, liveParticles func() int) (*Instruments, error) {
	ins := &Instruments{}

	var err error
	ins.processed, err = m.Int64Counter(
		"airsketch.frames.processed",
		metric.WithDescription("Camera frames delivered to a landmark consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	ins.dropped, err = m.Int64Counter(
		"airsketch.frames.dropped",
		metric.WithDescription("Camera frames dropped because a previous frame was still in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	ins.exports, err = m.Int64Counter(
		"airsketch.artworks.exported",
		metric.WithDescription("Drawing surface exports"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating export counter: %w", err)
	}

	ins.particles, err = m.Int64ObservableGauge(
		"airsketch.particles.live",
		metric.WithDescription("Live particles in the effect pool"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating particle gauge: %w", err)
	}

	ins.SetParticleSource(liveParticles)
	ins.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(ins.particles, int64(ins.LiveParticles()))
			return nil
		},
		ins.particles,
	)
	if err != nil {
		return nil, fmt.Errorf("registering particle callback: %w", err)
	}

	return ins, nil
}

// SetParticleSource replaces the function sampled by the particle gauge.
// It is safe to call while the gauge is being collected.
func (i *Instruments) SetParticleSource(fn func() int) {
	if fn == nil {
		i.source.Store(nil)
		return
	}
	i.source.Store(&fn)
}

// LiveParticles returns the current particle count, or 0 without a source.
func (i *Instruments) LiveParticles() int {
	if fn := i.source.Load(); fn != nil {
		return (*fn)()
	}
	return 0
}

// FrameProcessed records a frame handed to the consumer for the given mode.
func (i *Instruments) FrameProcessed(ctx context.Context, mode string) {
	i.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// FrameDropped records a frame dropped by the reentrancy guard.
func (i *Instruments) FrameDropped(ctx context.Context, mode string) {
	i.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// ArtworkExported records a surface export.
func (i *Instruments) ArtworkExported(ctx context.Context) {
	i.exports.Add(ctx, 1)
}

// Close unregisters the gauge callback.
func (i *Instruments) Close() error {
	if i.reg == nil {
		return nil
	}
	return i.reg.Unregister()
}
