// Package history keeps a bounded linear undo/redo stack of surface
// snapshots. Saves are debounced; restores decode asynchronously and are
// serialized so that only the most recent one is applied.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults.
const (
	DefaultCapacity = 20
	DefaultDebounce = 500 * time.Millisecond
)

// ErrEmpty is returned when no snapshot has been saved yet.
var ErrEmpty = errors.New("history is empty")

// Pending is a decoded snapshot that has not been applied yet.
type Pending interface {
	Apply() error
	Discard()
}

// Target is the raster that snapshots are taken from and restored to.
type Target interface {
	Snapshot() ([]byte, error)
	Prepare(data []byte) (Pending, error)
}

// Options configures a Manager.
type Options struct {
	Capacity int
	Debounce time.Duration
	Clock    func() time.Time
	// Lock guards the target. Restores hold it while applying, and SaveAfter
	// holds it while saving. Callers of Save, Undo and Redo are expected to
	// hold it already.
	Lock   sync.Locker
	Logger zerolog.Logger
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// Manager is a linear snapshot stack with a pointer at the current entry.
type Manager struct {
	target   Target
	capacity int
	debounce time.Duration
	now      func() time.Time
	lock     sync.Locker
	log      zerolog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	entries  [][]byte
	pos      int
	lastSave time.Time
	timer    *time.Timer

	gen       uint64
	pending   int
	discarded int
}

// New creates a Manager for target.
func New(target Target, opts Options) *Manager {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Lock == nil {
		opts.Lock = noLock{}
	}
	m := &Manager{
		target:   target,
		capacity: opts.Capacity,
		debounce: opts.Debounce,
		now:      opts.Clock,
		lock:     opts.Lock,
		log:      opts.Logger,
		pos:      -1,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Save records a snapshot unless one was taken within the debounce window.
// It reports whether an entry was added.
func (m *Manager) Save() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastSave.IsZero() && now.Sub(m.lastSave) < m.debounce {
		return false
	}
	return m.saveLocked(now)
}

// SaveNow records a snapshot regardless of the debounce window.
func (m *Manager) SaveNow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(m.now())
}

// SaveAfter schedules a debounced Save after d, replacing any earlier
// scheduled save.
func (m *Manager) SaveAfter(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(d, func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		m.Save()
	})
}

func (m *Manager) saveLocked(now time.Time) bool {
	data, err := m.target.Snapshot()
	if err != nil {
		m.log.Warn().Err(err).Msg("snapshot failed")
		return false
	}

	m.entries = append(m.entries[:m.pos+1], data)
	if len(m.entries) > m.capacity {
		m.entries[0] = nil
		m.entries = m.entries[1:]
	}
	m.pos = len(m.entries) - 1
	m.lastSave = now
	// A restore still decoding would overwrite what was just saved.
	m.gen++
	return true
}

// Undo moves back one entry and restores it. It reports whether it moved.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos <= 0 {
		return false
	}
	m.pos--
	m.restoreLocked(m.entries[m.pos])
	return true
}

// Redo moves forward one entry and restores it. It reports whether it moved.
func (m *Manager) Redo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos >= len(m.entries)-1 {
		return false
	}
	m.pos++
	m.restoreLocked(m.entries[m.pos])
	return true
}

// restoreLocked decodes data on a new goroutine and applies it unless a newer
// restore has started in the meantime.
func (m *Manager) restoreLocked(data []byte) {
	m.gen++
	gen := m.gen
	m.pending++

	go func() {
		defer func() {
			m.mu.Lock()
			m.pending--
			m.cond.Broadcast()
			m.mu.Unlock()
		}()

		p, err := m.target.Prepare(data)
		if err != nil {
			m.log.Warn().Err(err).Uint64("generation", gen).Msg("decode snapshot failed")
			return
		}

		m.lock.Lock()
		defer m.lock.Unlock()
		m.mu.Lock()
		defer m.mu.Unlock()

		if gen != m.gen {
			p.Discard()
			m.discarded++
			m.log.Debug().Uint64("generation", gen).Uint64("latest", m.gen).Msg("stale restore discarded")
			return
		}
		if err := p.Apply(); err != nil {
			m.log.Warn().Err(err).Uint64("generation", gen).Msg("apply snapshot failed")
			return
		}
	}()
}

// Wait blocks until every restore started so far has finished. It must not
// be called while holding the target lock.
func (m *Manager) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.pending > 0 {
		m.cond.Wait()
	}
}

// Current returns the snapshot at the pointer.
func (m *Manager) Current() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos < 0 {
		return nil, ErrEmpty
	}
	return m.entries[m.pos], nil
}

// CanUndo reports whether Undo would move.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos > 0
}

// CanRedo reports whether Redo would move.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos < len(m.entries)-1
}

// Len returns the number of stored entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Step returns the pointer, or -1 when empty.
func (m *Manager) Step() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Discarded returns how many restores were dropped as stale.
func (m *Manager) Discarded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discarded
}

// Close cancels a scheduled save and waits for in-flight restores.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.Wait()
}
