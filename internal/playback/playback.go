// Package playback plays synthesized speech through the default audio device.
package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

var (
	speakerMu   sync.Mutex
	speakerRate beep.SampleRate
)

// initSpeaker initializes the speaker once per sample rate. The speaker is a
// process-wide device, so re-initializing it at the same rate is skipped.
func initSpeaker(rate beep.SampleRate) error {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerRate == rate {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return err
	}
	speakerRate = rate
	return nil
}

// Play decodes the mp3 file at path and plays it, blocking until playback
// finishes or ctx is canceled.
func Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	return PlayStream(ctx, f)
}

// PlayStream decodes mp3 audio from r and plays it. r is closed when
// playback ends.
func PlayStream(ctx context.Context, r io.ReadCloser) error {
	streamer, format, err := mp3.Decode(r)
	if err != nil {
		r.Close()
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := initSpeaker(format.SampleRate); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(streamer, beep.Callback(func() {
		close(done)
	}))}
	speaker.Play(ctrl)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
		return ctx.Err()
	}
}
