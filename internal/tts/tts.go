// Package tts turns the typed text into speech.
package tts

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("text is empty")
	// ErrNoVoices is returned when the provider offers no voices.
	ErrNoVoices = errors.New("no voices available")
)

// Voice is a speech voice offered by a provider.
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize converts text to speech with the given voice. The caller
	// must close the returned stream.
	Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

// VoiceLister lists the voices a provider offers.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}
