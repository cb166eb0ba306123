package app

import (
	"context"
	"errors"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/debounce"
	"github.com/ayusman/mudra/internal/overlay"
	"github.com/ayusman/mudra/internal/store"
)

// FrameSink displays rendered frames. Show returns false to end the
// session, for example when the window is closed.
type FrameSink interface {
	Show(frame *gocv.Mat) bool
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(frame *gocv.Mat) bool

func (f FrameSinkFunc) Show(frame *gocv.Mat) bool {
	return f(frame)
}

// Run is the capture loop. Each tick it reads a frame, hands a copy to the
// classify worker, draws the overlay and passes the frame to sink (which
// may be nil when running headless). It must run on the goroutine that owns
// any OpenCV windows, and returns when ctx is done, sink asks to stop or the
// camera is closed.
func (a *App) Run(ctx context.Context, sink FrameSink) error {
	a.mu.RLock()
	started, async := a.started, a.async
	a.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	fps := a.config.Camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := a.config.Camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return err
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}

		async.Submit(frame, a.config.Clock())

		a.render(frame)

		keepGoing := sink == nil || sink.Show(frame)
		frame.Close()
		if !keepGoing {
			return nil
		}
	}
}

// render draws the current snapshot onto frame and, when streaming, keeps a
// JPEG copy of the result.
func (a *App) render(frame *gocv.Mat) {
	snap := a.Snapshot()
	a.renderer.Draw(frame, overlay.State{
		Text:         snap.Text,
		Progress:     debounce.Progress{Category: snap.Category, Fraction: snap.Fraction},
		ButtonActive: snap.ButtonActive,
		Voice:        snap.Voice,
		Paused:       !snap.Enabled,
	})

	if !a.config.EncodeFrames {
		return
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.mu.Lock()
	a.jpeg = data
	a.jpegSeq++
	a.mu.Unlock()
}

// consume is the only goroutine that touches the debouncer.
func (a *App) consume() {
	defer a.wg.Done()

	for out := range a.async.Results() {
		a.apply(out)
	}
}

// apply feeds one classification result to the debouncer and publishes the
// outcome.
func (a *App) apply(out classifier.Output) {
	obs := out.Observation
	if out.Err != nil {
		log.Printf("Error classifying frame: %v", out.Err)
		obs = debounce.Observation{}
	}
	if !a.IsEnabled() {
		obs = debounce.Observation{}
	}

	ev, progress := a.debouncer.Observe(obs, out.At)
	state := a.debouncer.State()

	a.mu.Lock()
	a.snap.Text = state.Text.String()
	a.snap.Category = progress.Category
	a.snap.Fraction = progress.Fraction
	a.snap.ButtonActive = state.ButtonActive
	if ev != nil {
		e := *ev
		a.snap.LastEvent = &e
	}
	listeners := a.listeners
	a.mu.Unlock()

	if ev == nil {
		return
	}
	a.handleEvent(*ev)
	for _, fn := range listeners {
		fn(*ev)
	}
}

// handleEvent logs, persists and dispatches a fired event.
func (a *App) handleEvent(ev debounce.Event) {
	switch ev.Kind {
	case debounce.EventAppendChar:
		log.Printf("Added character: %s", ev.Char)
	case debounce.EventAppendSpace:
		log.Println("Added space")
	case debounce.EventDeleteLast:
		log.Println("Deleted last character")
	case debounce.EventCommit:
		log.Printf("Final Text: %s", ev.Text)
	}

	if a.config.Store != nil && a.sessionID != "" {
		rec := &store.EventRecord{
			SessionID: a.sessionID,
			Kind:      ev.Kind.String(),
			Value:     eventValue(ev),
			Text:      ev.Text,
			CreatedAt: ev.At,
		}
		if err := a.config.Store.Events().Append(rec); err != nil {
			log.Printf("Error storing event: %v", err)
		}
	}

	if ev.Kind == debounce.EventCommit && a.config.CommitHook != nil {
		a.hooks.Add(1)
		go func() {
			defer a.hooks.Done()
			a.runCommitHook(a.ctx, ev)
		}()
	}
}

func (a *App) runCommitHook(ctx context.Context, ev debounce.Event) {
	if _, err := a.config.CommitHook.Run(ctx, ev.Kind.String(), ev.Text); err != nil {
		log.Printf("Commit action failed: %v", err)
		return
	}
	log.Printf("Commit action ran for %q", ev.Text)
}

func eventValue(ev debounce.Event) string {
	switch ev.Kind {
	case debounce.EventAppendChar:
		return ev.Char
	case debounce.EventAppendSpace:
		return " "
	default:
		return ""
	}
}
