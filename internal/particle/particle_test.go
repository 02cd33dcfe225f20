package particle

import (
	"image/color"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestParticle_ResetRanges(t *testing.T) {
	rng := newRNG()
	var p Particle

	for i := 0; i < 1000; i++ {
		p.Reset(10, 20, white, PaintPhysics, rng)

		require.Equal(t, 1.0, p.Life)
		require.Equal(t, 10.0, p.X)
		require.Equal(t, 20.0, p.Y)
		require.GreaterOrEqual(t, p.VX, -3.0)
		require.Less(t, p.VX, 3.0)
		require.GreaterOrEqual(t, p.VY, -5.0)
		require.Less(t, p.VY, 1.0)
		require.GreaterOrEqual(t, p.Decay, 0.01)
		require.LessOrEqual(t, p.Decay, 0.05)
		require.GreaterOrEqual(t, p.Size, 1.0)
		require.Less(t, p.Size, 4.0)
	}
}

func TestParticle_Step(t *testing.T) {
	p := Particle{X: 0, Y: 0, VX: 2, VY: -1, Life: 1, Decay: 0.1, RotationSpeed: 0.5}
	p.Step(PaintPhysics)

	assert.InDelta(t, 2, p.X, 1e-9)
	assert.InDelta(t, -1, p.Y, 1e-9)
	assert.InDelta(t, -1+0.15, p.VY, 1e-9)
	assert.InDelta(t, 2*0.98, p.VX, 1e-9)
	assert.InDelta(t, 0.9, p.Life, 1e-9)
	assert.InDelta(t, 0.5, p.Rotation, 1e-9)
}

func TestParticle_LifeNonIncreasingUntilDead(t *testing.T) {
	rng := newRNG()
	for n := 0; n < 50; n++ {
		var p Particle
		p.Reset(0, 0, white, PaintPhysics, rng)

		prev := p.Life
		steps := 0
		for !p.IsDead() {
			p.Step(PaintPhysics)
			require.LessOrEqual(t, p.Life, prev)
			require.Equal(t, p.Life <= 0, p.IsDead())
			prev = p.Life
			steps++
			require.Less(t, steps, 200, "particle never died")
		}
		assert.LessOrEqual(t, p.Life, 0.0)
	}
}

func TestPool_CapIsNeverExceeded(t *testing.T) {
	pool := NewPool(300, 100, PaintPhysics, newRNG())

	spawned := pool.Emit(0, 0, white, 301)

	assert.Equal(t, 300, spawned)
	assert.Equal(t, 300, pool.Live())
	_, discarded := pool.Stats()
	assert.Equal(t, 1, discarded)

	// further emission is discarded, not queued
	assert.Zero(t, pool.Emit(0, 0, white, EmitHighEnergy))
	assert.Equal(t, 300, pool.Live())
}

func TestPool_EmitManyEvents(t *testing.T) {
	pool := NewPool(50, 10, PaintPhysics, newRNG())
	for i := 0; i < 1000; i++ {
		pool.Emit(float64(i), 0, white, EmitCount(i%2 == 0))
		require.LessOrEqual(t, pool.Live(), pool.Cap())
		if i%7 == 0 {
			pool.Tick(nil)
		}
	}
}

func TestPool_TickRecyclesIntoBoundedFreeList(t *testing.T) {
	pool := NewPool(300, 100, PaintPhysics, newRNG())
	pool.Emit(0, 0, white, 250)

	for i := 0; i < 200 && pool.Live() > 0; i++ {
		pool.Tick(nil)
	}

	assert.Zero(t, pool.Live())
	assert.Equal(t, 100, pool.Free())
}

func TestPool_ReusesFreeParticles(t *testing.T) {
	pool := NewPool(10, 10, PaintPhysics, newRNG())
	pool.Emit(0, 0, white, 10)
	pool.Clear()
	require.Equal(t, 10, pool.Free())

	pool.Emit(5, 5, white, 4)

	allocated, _ := pool.Stats()
	assert.Equal(t, 10, allocated, "recycled particles should be reused")
	assert.Equal(t, 6, pool.Free())
}

func TestPool_TickRendersOnlySurvivors(t *testing.T) {
	pool := NewPool(10, 10, PaintPhysics, newRNG())
	pool.Emit(0, 0, white, 3)

	rendered := 0
	pool.Tick(func(p *Particle) {
		assert.False(t, p.IsDead())
		rendered++
	})
	assert.Equal(t, pool.Live(), rendered)
}

func TestEmitCount(t *testing.T) {
	assert.Equal(t, 2, EmitCount(false))
	assert.Equal(t, 5, EmitCount(true))
}

func TestStyle(t *testing.T) {
	p := &Particle{Life: 0.5}
	assert.InDelta(t, 0.25, PaintStyle.Alpha(p), 1e-9)
	assert.InDelta(t, 0.5, DashboardStyle.Alpha(p), 1e-9)

	assert.False(t, PaintStyle.Glows(p))
	assert.True(t, PaintStyle.Glows(&Particle{Life: 0.8}))
	assert.True(t, DashboardStyle.Glows(p))
}

func TestStarPoints(t *testing.T) {
	p := &Particle{X: 50, Y: 50, Size: 10}
	pts := StarPoints(p, 0.5)
	require.Len(t, pts, 10)

	for i, pt := range pts {
		d := math.Hypot(float64(pt.X)-50, float64(pt.Y)-50)
		want := 10.0
		if i%2 == 1 {
			want = 5
		}
		assert.InDelta(t, want, d, 1.0)
	}
}

func TestDrawAndFade(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	layer := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC4)
	defer layer.Close()

	p := &Particle{X: 50, Y: 50, Size: 8, Life: 1, Color: color.RGBA{R: 255, A: 255}}
	Draw(&layer, p, PaintStyle)

	// BGRA: red in channel 2, alpha in channel 3
	px := layer.GetVecbAt(50, 50)
	assert.Equal(t, uint8(255), px[2])
	assert.Equal(t, uint8(255), px[3])

	require.NoError(t, Fade(&layer, 0.5))
	px = layer.GetVecbAt(50, 50)
	assert.InDelta(t, 127, int(px[3]), 1)
}
