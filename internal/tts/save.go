package tts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SaveSpeech synthesizes text with voiceID and writes the audio to path.
// The file is written to a temporary name first and renamed into place, so
// a failed request never leaves a truncated file behind. Blank text returns
// ErrEmptyText without calling the synthesizer.
func SaveSpeech(ctx context.Context, s Synthesizer, text, voiceID, path string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}

	audio, err := s.Synthesize(ctx, text, voiceID)
	if err != nil {
		return 0, fmt.Errorf("synthesize: %w", err)
	}
	defer audio.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".speech-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, audio)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("write audio: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename audio file: %w", err)
	}

	return n, nil
}
