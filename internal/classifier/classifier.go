// Package classifier bridges video frames to a hand-gesture classifier and
// reduces its output to debounce observations.
package classifier

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/debounce"
)

// DefaultModelPath is the gesture recognizer model used when none is configured.
const DefaultModelPath = "gesture_recognizer.task"

// Gesture is one ranked classifier result.
type Gesture struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Classifier defines the interface for gesture classification implementations.
type Classifier interface {
	// Classify analyzes a video frame and returns recognized gestures,
	// best first. Returns an empty slice if no hand is recognized.
	Classify(frame *gocv.Mat) ([]Gesture, error)

	// Close releases any resources held by the classifier.
	Close() error
}

// Config holds configuration options for the MediaPipe classifier.
type Config struct {
	// ModelPath is the .task model file passed to the recognizer service.
	ModelPath string

	// NumHands is the maximum number of hands to classify.
	NumHands int

	// MinConfidence drops gestures scoring below it (0.0-1.0).
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:     DefaultModelPath,
		NumHands:      1,
		MinConfidence: 0,
	}
}

// Top reduces ranked gestures to the observation fed to the debouncer.
func Top(gestures []Gesture) debounce.Observation {
	if len(gestures) == 0 {
		return debounce.Observation{}
	}
	return debounce.Observation{
		Category:   gestures[0].Category,
		Confidence: gestures[0].Score,
	}
}
