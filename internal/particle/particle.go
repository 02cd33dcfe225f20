// Package particle implements the short-lived star particles emitted while
// drawing and over detected fingertips, and the bounded pool that recycles them.
package particle

import (
	"image/color"
	"math"
	"math/rand/v2"
)

// Physics holds the spawn ranges and per-step constants of a particle preset.
type Physics struct {
	Gravity       float64 // added to VY every step
	Drag          float64 // VX multiplier every step, < 1
	SpreadX       float64 // VX in [-SpreadX/2, SpreadX/2)
	SpreadY       float64 // VY in [-SpreadY/2, SpreadY/2) - Lift
	Lift          float64
	DecayMin      float64
	DecayMax      float64
	SizeMin       float64
	SizeMax       float64
	RotationSpeed float64 // RotationSpeed in [-RotationSpeed/2, RotationSpeed/2)
}

// PaintPhysics is used by the drawing page.
var PaintPhysics = Physics{
	Gravity:       0.15,
	Drag:          0.98,
	SpreadX:       6,
	SpreadY:       6,
	Lift:          2,
	DecayMin:      0.02,
	DecayMax:      0.05,
	SizeMin:       1,
	SizeMax:       4,
	RotationSpeed: 0.2,
}

// DashboardPhysics is used by the dashboard's fingertip sparks.
var DashboardPhysics = Physics{
	Gravity:       0.1,
	Drag:          0.99,
	SpreadX:       4,
	SpreadY:       4,
	Lift:          2,
	DecayMin:      0.01,
	DecayMax:      0.03,
	SizeMin:       1,
	SizeMax:       4,
	RotationSpeed: 0.1,
}

// Particle is a point mass with a decaying life in [0,1].
type Particle struct {
	X, Y          float64
	VX, VY        float64
	Life          float64
	Decay         float64
	Size          float64
	Color         color.RGBA
	Rotation      float64
	RotationSpeed float64
}

// Reset reinitializes p at (x, y) with randomized velocity, decay, size and spin.
func (p *Particle) Reset(x, y float64, c color.RGBA, ph Physics, rng *rand.Rand) {
	p.X = x
	p.Y = y
	p.VX = (rng.Float64() - 0.5) * ph.SpreadX
	p.VY = (rng.Float64()-0.5)*ph.SpreadY - ph.Lift
	p.Life = 1.0
	p.Decay = ph.DecayMin + rng.Float64()*(ph.DecayMax-ph.DecayMin)
	p.Size = ph.SizeMin + rng.Float64()*(ph.SizeMax-ph.SizeMin)
	p.Color = c
	p.Rotation = rng.Float64() * 2 * math.Pi
	p.RotationSpeed = (rng.Float64() - 0.5) * ph.RotationSpeed
}

// Step advances p by one tick.
func (p *Particle) Step(ph Physics) {
	p.X += p.VX
	p.Y += p.VY
	p.VY += ph.Gravity
	p.VX *= ph.Drag
	p.Life -= p.Decay
	p.Rotation += p.RotationSpeed
}

// IsDead reports whether the particle's life is exhausted.
func (p *Particle) IsDead() bool {
	return p.Life <= 0
}
