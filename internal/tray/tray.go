// Package tray provides a macOS system tray interface for gesture typing.
package tray

import (
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rivo/uniseg"

	"github.com/ayusman/mudra/internal/debounce"
)

// MaxTextWidth is the number of characters of typed text shown in the menu.
const MaxTextWidth = 24

// Tray represents the macOS system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	text     string
	last     string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuText      *systray.MenuItem
	menuLastEvent *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the "Open Status Page" item. The item is
// only shown when a callback is set before Run.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Gesture Typing")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture typing")
	systray.AddSeparator()

	t.menuText = systray.AddMenuItem(textTitle(t.text), "Typed text")
	t.menuText.Disable()
	t.menuLastEvent = systray.AddMenuItem(lastTitle(t.last), "Last typing event")
	t.menuLastEvent.Disable()
	systray.AddSeparator()

	var openCh chan struct{}
	if t.onOpen != nil {
		openCh = systray.AddMenuItem("Open Status Page...", "Open the status page in a browser").ClickedCh
		systray.AddSeparator()
	}
	toggleCh := t.menuToggle.ClickedCh
	t.mu.Unlock()

	menuQuit := systray.AddMenuItem("Quit", "Finish the session and quit")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-toggleCh:
				t.handleToggle()
			case <-openCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleOpen handles the status page menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEvent updates the text and last event lines from a fired event.
func (t *Tray) SetEvent(ev debounce.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.text = ev.Text
	t.last = eventLabel(ev)

	if t.menuText != nil {
		t.menuText.SetTitle(textTitle(t.text))
	}
	if t.menuLastEvent != nil {
		t.menuLastEvent.SetTitle(lastTitle(t.last))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Paused"
}

func textTitle(text string) string {
	if text == "" {
		return "Text: (empty)"
	}
	return "Text: " + tail(text, MaxTextWidth)
}

func lastTitle(label string) string {
	if label == "" {
		return "Last: none"
	}
	return "Last: " + label
}

// eventLabel describes ev for the menu.
func eventLabel(ev debounce.Event) string {
	switch ev.Kind {
	case debounce.EventAppendChar:
		return "typed " + ev.Char
	case debounce.EventAppendSpace:
		return "space"
	case debounce.EventDeleteLast:
		return "delete"
	case debounce.EventCommit:
		return "commit"
	default:
		return ""
	}
}

// tail returns the last n characters of s, prefixed with an ellipsis when
// anything was cut.
func tail(s string, n int) string {
	count := uniseg.GraphemeClusterCount(s)
	if count <= n {
		return s
	}

	skip := count - n
	var b strings.Builder
	b.WriteString("…")
	g := uniseg.NewGraphemes(s)
	for i := 0; g.Next(); i++ {
		if i >= skip {
			b.WriteString(g.Str())
		}
	}
	return b.String()
}
