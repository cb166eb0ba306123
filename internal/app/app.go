// Package app runs a gesture typing session: it captures frames, classifies
// them off the capture loop, debounces the results into text edits and
// publishes snapshots for the overlay, the HTTP server and the tray.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/debounce"
	"github.com/ayusman/mudra/internal/overlay"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultObservationBuffer is the capacity of the channel between the
// classify worker and the consumer.
const DefaultObservationBuffer = 32

var (
	// ErrAlreadyStarted is returned by Start on a running App.
	ErrAlreadyStarted = errors.New("app already started")
	// ErrNotStarted is returned by Run before Start.
	ErrNotStarted = errors.New("app not started")
)

// CommitHook is run with the typed text whenever a commit fires.
type CommitHook interface {
	Run(ctx context.Context, event, text string) (*plugin.Response, error)
}

// Config holds configuration options for the application.
type Config struct {
	Camera     capture.Camera
	Classifier classifier.Classifier
	Debounce   debounce.Config

	// Optional collaborators.
	Store      *store.Store
	CommitHook CommitHook
	Renderer   *overlay.Renderer

	VoiceID   string
	VoiceName string

	ObservationBuffer int
	// EncodeFrames keeps a JPEG of the latest rendered frame for streaming.
	EncodeFrames bool
	// Clock stamps captured frames. Defaults to time.Now.
	Clock func() time.Time
}

// Snapshot is a consistent view of the session for readers outside the
// consumer goroutine.
type Snapshot struct {
	Text          string          `json:"text"`
	Category      string          `json:"category"`
	Fraction      float64         `json:"fraction"`
	ButtonActive  bool            `json:"button_active"`
	LastEvent     *debounce.Event `json:"last_event,omitempty"`
	Enabled       bool            `json:"enabled"`
	Voice         string          `json:"voice,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	DroppedFrames int64           `json:"dropped_frames"`
}

// App is the main application that orchestrates a typing session.
type App struct {
	config    Config
	renderer  *overlay.Renderer
	debouncer *debounce.Debouncer // owned by the consumer goroutine

	async  *classifier.Async
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // consumer
	hooks  sync.WaitGroup // in-flight commit hooks

	mu        sync.RWMutex
	snap      Snapshot
	enabled   bool
	started   bool
	finished  bool
	sessionID string
	listeners []func(debounce.Event)
	jpeg      []byte
	jpegSeq   uint64
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.ObservationBuffer <= 0 {
		config.ObservationBuffer = DefaultObservationBuffer
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	renderer := config.Renderer
	if renderer == nil {
		renderer = overlay.NewRenderer()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config:    config,
		renderer:  renderer,
		debouncer: debounce.New(config.Debounce),
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
	}
}

// Start opens the camera, records a new session and starts the classify
// worker and the consumer loop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}
	if a.config.Camera == nil || a.config.Classifier == nil {
		return fmt.Errorf("camera and classifier are required")
	}

	if !a.config.Camera.IsOpen() {
		if err := a.config.Camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}

	if a.config.Store != nil {
		sess := &store.Session{VoiceID: a.config.VoiceID, VoiceName: a.config.VoiceName}
		if err := a.config.Store.Sessions().Create(sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		a.sessionID = sess.ID
		log.Printf("Session %s started", sess.ID)
	}

	a.cancel()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.async = classifier.NewAsync(a.config.Classifier, a.config.ObservationBuffer)
	a.started = true

	a.wg.Add(1)
	go a.consume()

	log.Println("Typing pipeline started")
	return nil
}

// Finish stops the pipeline, closes the camera and classifier, records the
// final text on the session and returns it. It is safe to call more than
// once.
func (a *App) Finish() (string, error) {
	a.mu.Lock()
	if !a.started || a.finished {
		a.mu.Unlock()
		return a.Text(), nil
	}
	a.finished = true
	async := a.async
	a.mu.Unlock()

	var errs []error

	// Closing the worker closes its results channel; the consumer drains
	// what is buffered and exits.
	if err := async.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close classifier: %w", err))
	}
	a.wg.Wait()
	a.hooks.Wait()
	a.cancel()

	if err := a.config.Camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}

	text := a.Text()
	if a.config.Store != nil && a.sessionID != "" {
		if err := a.config.Store.Sessions().Finish(a.sessionID, text, ""); err != nil {
			errs = append(errs, fmt.Errorf("finish session: %w", err))
		}
	}

	log.Println("Typing pipeline stopped")
	return text, errors.Join(errs...)
}

// SetEnabled pauses or resumes typing. While paused every observation is
// treated as "no gesture", so holds reset and nothing fires.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
	a.snap.Enabled = enabled
}

// IsEnabled returns whether typing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnEvent registers fn to be called for every fired event, on the consumer
// goroutine. fn must not block.
func (a *App) OnEvent(fn func(debounce.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Snapshot returns the latest session state.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.snap
	s.Enabled = a.enabled
	s.Voice = a.config.VoiceName
	s.SessionID = a.sessionID
	if a.async != nil {
		s.DroppedFrames = a.async.Dropped()
	}
	if s.LastEvent != nil {
		ev := *s.LastEvent
		s.LastEvent = &ev
	}
	return s
}

// Text returns the typed text.
func (a *App) Text() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Text
}

// SessionID returns the stored session ID, or "" without a store.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// LatestJPEG returns the most recent rendered frame as JPEG and a sequence
// number that increases with every new frame. It is nil unless
// EncodeFrames is set.
func (a *App) LatestJPEG() ([]byte, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.jpeg, a.jpegSeq
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.config.Camera
}
