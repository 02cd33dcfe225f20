// Package tray provides the system tray menu of airsketch.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Actions are the callbacks behind the menu items. Nil callbacks are skipped,
// and the matching items are hidden.
type Actions struct {
	OnTracking  func(enabled bool)
	OnParticles func(enabled bool)
	OnClear     func()
	OnUndo      func()
	OnExport    func()
	OnOpen      func()
	OnQuit      func()
}

// Tray represents the system tray application.
type Tray struct {
	actions   Actions
	tracking  bool
	particles bool
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuTracking  *systray.MenuItem
	menuParticles *systray.MenuItem
	menuStatus    *systray.MenuItem
}

// New creates a new Tray with tracking enabled and the given particle state.
func New(actions Actions, particles bool) *Tray {
	return &Tray{
		actions:   actions,
		tracking:  true,
		particles: particles,
	}
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("airsketch")
	systray.SetTooltip("airsketch hand tracking")

	t.mu.Lock()
	t.menuTracking = systray.AddMenuItem(trackingTitle(t.tracking), "Toggle hand tracking")
	t.menuParticles = systray.AddMenuItem(particlesTitle(t.particles), "Toggle brush particles")
	if t.actions.OnParticles == nil {
		t.menuParticles.Hide()
	}
	t.menuStatus = systray.AddMenuItem("Gesture: none", "Current gesture")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuClear := systray.AddMenuItem("Clear canvas", "Erase the drawing")
	menuUndo := systray.AddMenuItem("Undo", "Undo the last stroke")
	menuExport := systray.AddMenuItem("Export PNG", "Save the drawing as PNG")
	if t.actions.OnClear == nil {
		menuClear.Hide()
	}
	if t.actions.OnUndo == nil {
		menuUndo.Hide()
	}
	if t.actions.OnExport == nil {
		menuExport.Hide()
	}
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in browser...", "Open the web UI")
	menuQuit := systray.AddMenuItem("Quit", "Quit airsketch")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuTracking.ClickedCh:
				t.handleTracking()
			case <-t.menuParticles.ClickedCh:
				t.handleParticles()
			case <-menuClear.ClickedCh:
				call(t.actions.OnClear)
			case <-menuUndo.ClickedCh:
				call(t.actions.OnUndo)
			case <-menuExport.ClickedCh:
				call(t.actions.OnExport)
			case <-menuOpen.ClickedCh:
				call(t.actions.OnOpen)
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func trackingTitle(on bool) string {
	if on {
		return "● Tracking"
	}
	return "○ Tracking paused"
}

func particlesTitle(on bool) string {
	if on {
		return "● Particles"
	}
	return "○ Particles"
}

// handleTracking flips hand tracking.
func (t *Tray) handleTracking() {
	t.mu.Lock()
	t.tracking = !t.tracking
	enabled := t.tracking
	if t.menuTracking != nil {
		t.menuTracking.SetTitle(trackingTitle(enabled))
	}
	callback := t.actions.OnTracking
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleParticles flips brush particles.
func (t *Tray) handleParticles() {
	t.mu.Lock()
	t.particles = !t.particles
	enabled := t.particles
	if t.menuParticles != nil {
		t.menuParticles.SetTitle(particlesTitle(enabled))
	}
	callback := t.actions.OnParticles
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	call(t.actions.OnQuit)
	systray.Quit()
}

// SetGesture updates the status line with the current gesture.
func (t *Tray) SetGesture(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}
	if name == "" {
		name = "none"
	}
	t.menuStatus.SetTitle("Gesture: " + name)
}

// Tracking returns whether hand tracking is on.
func (t *Tray) Tracking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tracking
}

// Particles returns whether brush particles are on.
func (t *Tray) Particles() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.particles
}
