// Package debounce turns a noisy per-frame stream of classified hand
// gestures into discrete text-edit events.
//
// A gesture category has to be observed continuously for Config.HoldTime
// before it takes effect. Any gap in detection, even a single frame, and any
// switch to another category discards the hold accumulated so far.
package debounce

import (
	"fmt"
	"time"
)

// Default debounce settings.
const (
	DefaultHoldTime         = 1200 * time.Millisecond
	DefaultCommitLabel      = "button"
	DefaultDeleteLabel      = "del"
	DefaultSpaceLabel       = "space"
	DefaultCommitConfidence = 0.7
)

// Observation is the top-ranked classifier result for one processed frame.
// An empty Category means no gesture was detected.
type Observation struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// EventKind identifies a text-edit event.
type EventKind int

const (
	// EventAppendChar appends a single character.
	EventAppendChar EventKind = iota + 1
	// EventAppendSpace appends a space.
	EventAppendSpace
	// EventDeleteLast removes the last character.
	EventDeleteLast
	// EventCommit finalizes the current text without editing it.
	EventCommit
)

// String returns the event kind name used in logs and storage.
func (k EventKind) String() string {
	switch k {
	case EventAppendChar:
		return "append_char"
	case EventAppendSpace:
		return "append_space"
	case EventDeleteLast:
		return "delete_last"
	case EventCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *EventKind) UnmarshalText(text []byte) error {
	for kind := EventAppendChar; kind <= EventCommit; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event is a debounced text-edit event.
type Event struct {
	Kind EventKind `json:"kind"`
	Char string    `json:"char,omitempty"` // Set for EventAppendChar
	Text string    `json:"text"`           // Buffer contents after the event was applied
	At   time.Time `json:"at"`             // Observation time that fired the event
}

// Progress reports how far the tracked category is toward firing.
type Progress struct {
	Category string  `json:"category"`
	Fraction float64 `json:"fraction"` // 0..1
}

// Config holds the debounce settings.
type Config struct {
	// HoldTime is how long a category must be held before it fires.
	HoldTime time.Duration

	// CommitLabel, DeleteLabel and SpaceLabel are the reserved categories,
	// compared case-insensitively.
	CommitLabel string
	DeleteLabel string
	SpaceLabel  string

	// CommitConfidence is the score the commit gesture must exceed.
	CommitConfidence float64

	// RequireRelease makes a hold fire at most once; the category has to
	// change before it can fire again. When false a sustained hold fires
	// again every HoldTime.
	RequireRelease bool
}

// DefaultConfig returns a Config with the default labels and a 1.2s hold.
func DefaultConfig() Config {
	return Config{
		HoldTime:         DefaultHoldTime,
		CommitLabel:      DefaultCommitLabel,
		DeleteLabel:      DefaultDeleteLabel,
		SpaceLabel:       DefaultSpaceLabel,
		CommitConfidence: DefaultCommitConfidence,
	}
}

// State is the complete debouncer state.
type State struct {
	Category     string
	HoldStart    time.Time
	Text         Text
	ButtonActive bool
	Fired        bool // hold already fired; only consulted with RequireRelease
}

// Debouncer applies observations to a State. It is not safe for concurrent
// use; feed it from a single goroutine.
type Debouncer struct {
	config Config
	state  State
}

// New creates a Debouncer with empty state.
func New(config Config) *Debouncer {
	return &Debouncer{config: config}
}

// Config returns the debouncer configuration.
func (d *Debouncer) Config() Config {
	return d.config
}

// Observe applies one observation taken at now. It returns the event that
// fired, if any, and the hold progress of the tracked category.
func (d *Debouncer) Observe(obs Observation, now time.Time) (*Event, Progress) {
	s := &d.state

	if obs.Category == "" {
		s.Category = ""
		s.HoldStart = now
		s.ButtonActive = false
		s.Fired = false
		return nil, Progress{}
	}

	if obs.Category != s.Category {
		s.Category = obs.Category
		s.HoldStart = now
		s.Fired = false
	}

	elapsed := now.Sub(s.HoldStart)
	progress := Progress{Category: s.Category, Fraction: d.fraction(elapsed)}

	held := elapsed >= d.config.HoldTime
	if d.config.RequireRelease && s.Fired {
		held = false
		progress.Fraction = 1
	}

	if equalFold(obs.Category, d.config.CommitLabel) && obs.Confidence > d.config.CommitConfidence {
		s.ButtonActive = true
		if !held {
			return nil, progress
		}
		return d.fire(Event{Kind: EventCommit}, now), progress
	}

	s.ButtonActive = false
	if !held {
		return nil, progress
	}

	switch {
	case equalFold(obs.Category, d.config.DeleteLabel):
		if !s.Text.DeleteLast() {
			return nil, progress
		}
		return d.fire(Event{Kind: EventDeleteLast}, now), progress
	case equalFold(obs.Category, d.config.SpaceLabel):
		s.Text.Append(" ")
		return d.fire(Event{Kind: EventAppendSpace}, now), progress
	case isSingleCharacter(obs.Category):
		s.Text.Append(obs.Category)
		return d.fire(Event{Kind: EventAppendChar, Char: obs.Category}, now), progress
	}

	return nil, progress
}

// fire restarts the hold timer and completes ev.
func (d *Debouncer) fire(ev Event, now time.Time) *Event {
	d.state.HoldStart = now
	d.state.Fired = true
	ev.Text = d.state.Text.String()
	ev.At = now
	return &ev
}

// Progress returns the hold progress at now without changing state.
func (d *Debouncer) Progress(now time.Time) Progress {
	if d.state.Category == "" {
		return Progress{}
	}
	if d.config.RequireRelease && d.state.Fired {
		return Progress{Category: d.state.Category, Fraction: 1}
	}
	return Progress{
		Category: d.state.Category,
		Fraction: d.fraction(now.Sub(d.state.HoldStart)),
	}
}

func (d *Debouncer) fraction(elapsed time.Duration) float64 {
	if d.config.HoldTime <= 0 {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	f := float64(elapsed) / float64(d.config.HoldTime)
	if f > 1 {
		return 1
	}
	return f
}

// Text returns the accumulated text.
func (d *Debouncer) Text() string {
	return d.state.Text.String()
}

// State returns a copy of the current state.
func (d *Debouncer) State() State {
	return d.state
}

// Reset clears all state, including the accumulated text.
func (d *Debouncer) Reset() {
	d.state = State{}
}
