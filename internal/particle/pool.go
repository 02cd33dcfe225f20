package particle

import (
	"image/color"
	"math/rand/v2"
	"sync"
)

// Default pool bounds.
const (
	DefaultMaxLive = 300
	DefaultMaxFree = 100
)

// Emission counts per draw event.
const (
	EmitNormal     = 2
	EmitHighEnergy = 5
)

// EmitCount returns how many particles a brush emits per sample.
func EmitCount(highEnergy bool) int {
	if highEnergy {
		return EmitHighEnergy
	}
	return EmitNormal
}

// Pool owns the live particles and a bounded free-list of recycled ones.
// It is safe for concurrent use: the camera loop emits while the display
// loop ticks.
type Pool struct {
	mu      sync.Mutex
	physics Physics
	rng     *rand.Rand
	live    []*Particle
	free    []*Particle
	maxLive int
	maxFree int

	allocated int
	discarded int
}

// NewPool creates a pool with the given caps. Non-positive caps use the defaults.
// A nil rng seeds a new generator.
func NewPool(maxLive, maxFree int, ph Physics, rng *rand.Rand) *Pool {
	if maxLive <= 0 {
		maxLive = DefaultMaxLive
	}
	if maxFree <= 0 {
		maxFree = DefaultMaxFree
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pool{
		physics: ph,
		rng:     rng,
		live:    make([]*Particle, 0, maxLive),
		free:    make([]*Particle, 0, maxFree),
		maxLive: maxLive,
		maxFree: maxFree,
	}
}

// spawn pops a particle from the free-list, or allocates one, and resets it.
func (p *Pool) spawn(x, y float64, c color.RGBA) *Particle {
	var pt *Particle
	if n := len(p.free); n > 0 {
		pt = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		pt = &Particle{}
		p.allocated++
	}
	pt.Reset(x, y, c, p.physics, p.rng)
	return pt
}

// recycle returns pt to the free-list when there is room; otherwise it is
// left to the garbage collector.
func (p *Pool) recycle(pt *Particle) {
	if len(p.free) < p.maxFree {
		p.free = append(p.free, pt)
	}
}

// Emit spawns up to n particles at (x, y) while the live set is below its cap.
// It returns how many were spawned; the rest are discarded, not queued.
func (p *Pool) Emit(x, y float64, c color.RGBA, n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	spawned := 0
	for i := 0; i < n; i++ {
		if len(p.live) >= p.maxLive {
			p.discarded += n - i
			break
		}
		p.live = append(p.live, p.spawn(x, y, c))
		spawned++
	}
	return spawned
}

// Tick steps every live particle, recycles the dead ones and calls render
// for each survivor. render may be nil.
func (p *Pool) Tick(render func(*Particle)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.live[:0]
	for _, pt := range p.live {
		pt.Step(p.physics)
		if pt.IsDead() {
			p.recycle(pt)
			continue
		}
		if render != nil {
			render(pt)
		}
		kept = append(kept, pt)
	}
	for i := len(kept); i < len(p.live); i++ {
		p.live[i] = nil
	}
	p.live = kept
}

// Clear recycles every live particle.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, pt := range p.live {
		p.recycle(pt)
		p.live[i] = nil
	}
	p.live = p.live[:0]
}

// Live returns the number of live particles.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Free returns the number of recycled particles waiting for reuse.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats reports allocation and discard totals since creation.
func (p *Pool) Stats() (allocated, discarded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated, p.discarded
}

// Cap returns the live particle cap.
func (p *Pool) Cap() int {
	return p.maxLive
}
