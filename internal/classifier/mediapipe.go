package classifier

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// idleTimeout is how long the recognizer service may sit unused before it is stopped.
const idleTimeout = 30 * time.Second

// MediaPipeClassifier implements Classifier using a Python MediaPipe
// gesture recognizer subprocess.
//
// Protocol: each frame is written to stdin as a 4-byte big-endian length
// followed by JPEG bytes; the service answers with one JSON line
// {"gestures":[{"category":"a","score":0.93}]}.
type MediaPipeClassifier struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeClassifier creates a new MediaPipe classifier.
// The Python process is started lazily on first classification.
func NewMediaPipeClassifier(config Config) (*MediaPipeClassifier, error) {
	if findServiceScript() == "" {
		return nil, fmt.Errorf("gesture_service.py not found")
	}
	if config.ModelPath == "" {
		config.ModelPath = DefaultModelPath
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("gesture model: %w", err)
	}
	if config.NumHands <= 0 {
		config.NumHands = 1
	}

	return &MediaPipeClassifier{
		config: config,
	}, nil
}

// Classify encodes the frame, sends it to the recognizer and returns its gestures.
func (c *MediaPipeClassifier) Classify(frame *gocv.Mat) ([]Gesture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return nil, err
	}

	// The recognizer expects RGB; IMEncode takes BGR and the service converts.
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := c.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := c.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := c.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	gestures, err := parseResponse([]byte(line), c.config.MinConfidence)
	if err != nil {
		return nil, err
	}

	c.lastUsed = time.Now()
	c.resetIdleTimer()

	return gestures, nil
}

// Close shuts down the Python process.
func (c *MediaPipeClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}

func (c *MediaPipeClassifier) ensureStarted() error {
	if c.started {
		return nil
	}

	scriptPath := findServiceScript()
	if scriptPath == "" {
		return fmt.Errorf("gesture_service.py not found")
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	c.cmd = exec.Command(pythonPath, scriptPath,
		"--model", c.config.ModelPath,
		"--num-hands", strconv.Itoa(c.config.NumHands),
	)

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	c.cmd.Stderr = os.Stderr

	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start gesture service: %w", err)
	}

	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.started = true
	c.lastUsed = time.Now()

	return nil
}

func (c *MediaPipeClassifier) shutdown() error {
	if !c.started {
		return nil
	}

	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}

	if c.stdin != nil {
		c.stdin.Close()
	}

	err := c.cmd.Wait()
	c.started = false
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil

	return err
}

func (c *MediaPipeClassifier) resetIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(idleTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.shutdown()
	})
}

// jsonResponse is the line the recognizer service writes per frame.
type jsonResponse struct {
	Gestures []Gesture `json:"gestures"`
	Error    string    `json:"error,omitempty"`
}

// parseResponse decodes a service response line, drops gestures below
// minConfidence and sorts the rest best first.
func parseResponse(line []byte, minConfidence float64) ([]Gesture, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("gesture service: %s", resp.Error)
	}

	gestures := make([]Gesture, 0, len(resp.Gestures))
	for _, g := range resp.Gestures {
		if g.Score < minConfidence {
			continue
		}
		gestures = append(gestures, g)
	}

	sort.SliceStable(gestures, func(i, j int) bool {
		return gestures[i].Score > gestures[j].Score
	})

	return gestures, nil
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/gesture_service.py",
		"../scripts/gesture_service.py",
		filepath.Join(execDir, "scripts/gesture_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/gesture_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
