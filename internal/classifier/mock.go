package classifier

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockClassifier is a test implementation of the Classifier interface.
// It returns scripted results in order, then repeats the last one.
type MockClassifier struct {
	mu     sync.Mutex
	script [][]Gesture
	next   int
	err    error
	calls  int
	closed bool
}

// NewMockClassifier creates a new MockClassifier that recognizes nothing.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// SetGestures makes every call return gestures.
func (m *MockClassifier) SetGestures(gestures []Gesture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = [][]Gesture{gestures}
	m.next = 0
}

// SetScript makes successive calls return the given results in order.
func (m *MockClassifier) SetScript(script [][]Gesture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.next = 0
}

// SetError sets the error that will be returned by Classify.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Classify returns the next scripted result or error.
func (m *MockClassifier) Classify(frame *gocv.Mat) ([]Gesture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return nil, nil
	}

	i := m.next
	if i >= len(m.script) {
		i = len(m.script) - 1
	} else {
		m.next++
	}
	return m.script[i], nil
}

// Calls returns how many times Classify was invoked.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockClassifier) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mock as closed.
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Letter returns a single confident gesture for category.
func Letter(category string) []Gesture {
	return []Gesture{{Category: category, Score: 0.92}}
}
