package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/debounce"
	"github.com/ayusman/mudra/internal/store"
)

func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func TestApp_Session_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cam := capture.NewMockCamera(blankFrames(t, 3), true)
	cam.SetFPS(30)

	mock := classifier.NewMockClassifier()
	mock.SetGestures(classifier.Letter("A"))

	cfg := debounce.DefaultConfig()
	cfg.HoldTime = 150 * time.Millisecond

	a := New(Config{
		Camera:       cam,
		Classifier:   mock,
		Debounce:     cfg,
		Store:        s,
		VoiceName:    "Rachel",
		EncodeFrames: true,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	shown := 0
	sink := FrameSinkFunc(func(frame *gocv.Mat) bool {
		shown++
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := a.Run(ctx, sink); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	text, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	if shown == 0 {
		t.Error("sink never received a frame")
	}
	if text == "" || strings.Trim(text, "A") != "" {
		t.Errorf("text = %q, want a run of A", text)
	}
	if !mock.Closed() {
		t.Error("classifier should be closed by Finish")
	}
	if cam.IsOpen() {
		t.Error("camera should be closed by Finish")
	}
	if jpeg, seq := a.LatestJPEG(); len(jpeg) == 0 || seq == 0 {
		t.Error("expected an encoded frame for streaming")
	}

	sess, err := s.Sessions().GetByID(a.SessionID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.Text != text || !sess.Finished() || sess.VoiceName != "Rachel" {
		t.Errorf("session = %+v", sess)
	}

	events, err := s.Events().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != len(text) {
		t.Errorf("stored %d events for text %q", len(events), text)
	}

	// Finish is idempotent.
	if again, err := a.Finish(); err != nil || again != text {
		t.Errorf("second Finish() = %q, %v", again, err)
	}
}

func TestApp_SinkStopsRun_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewMockCamera(blankFrames(t, 1), true)
	cam.SetFPS(60)

	a := New(Config{
		Camera:     cam,
		Classifier: classifier.NewMockClassifier(),
		Debounce:   debounce.DefaultConfig(),
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Finish()

	shown := 0
	done := make(chan error, 1)
	go func() {
		done <- a.Run(context.Background(), FrameSinkFunc(func(*gocv.Mat) bool {
			shown++
			return shown < 5
		}))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop when the sink asked it to")
	}

	if shown != 5 {
		t.Errorf("sink shown %d frames, want 5", shown)
	}
}
