// Package config loads mudra settings from defaults, an optional TOML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ayusman/mudra/internal/debounce"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "mudra.toml"

type Config struct {
	Camera     CameraConfig     `toml:"camera"`
	Classifier ClassifierConfig `toml:"classifier"`
	Typing     TypingConfig     `toml:"typing"`
	Speech     SpeechConfig     `toml:"speech"`
	Server     ServerConfig     `toml:"server"`
	Plugins    PluginConfig     `toml:"plugins"`

	DataDir   string `toml:"data_dir"`
	Headless  bool   `toml:"headless"`
	Tray      bool   `toml:"tray"`
	SentryDSN string `toml:"sentry_dsn"`
}

type CameraConfig struct {
	Device int  `toml:"device"`
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	FPS    int  `toml:"fps"`
	Mirror bool `toml:"mirror"`
}

type ClassifierConfig struct {
	ModelPath     string  `toml:"model_path"`
	NumHands      int     `toml:"num_hands"`
	MinConfidence float64 `toml:"min_confidence"`
}

type TypingConfig struct {
	HoldTime         duration `toml:"hold_time"`
	CommitLabel      string   `toml:"commit_label"`
	DeleteLabel      string   `toml:"delete_label"`
	SpaceLabel       string   `toml:"space_label"`
	CommitConfidence float64  `toml:"commit_confidence"`
	RequireRelease   bool     `toml:"require_release"`
}

type SpeechConfig struct {
	APIKey     string  `toml:"api_key"`
	Voice      string  `toml:"voice"`
	VoiceCount int     `toml:"voice_count"`
	ModelID    string  `toml:"model_id"`
	Stability  float64 `toml:"stability"`
	Similarity float64 `toml:"similarity"`
	Output     string  `toml:"output"`
	Play       bool    `toml:"play"`
}

type ServerConfig struct {
	Addr string `toml:"addr"` // empty disables the HTTP server
}

type PluginConfig struct {
	Dir          string `toml:"dir"`
	CommitPlugin string `toml:"commit_plugin"` // empty disables the commit hook
	CommitAction string `toml:"commit_action"`
}

// duration lets hold_time be written as "1.2s" in TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".mudra")

	return Config{
		Camera: CameraConfig{
			Width:  640,
			Height: 480,
			FPS:    15,
			Mirror: true,
		},
		Classifier: ClassifierConfig{
			ModelPath:     "gesture_recognizer.task",
			NumHands:      1,
			MinConfidence: 0.5,
		},
		Typing: TypingConfig{
			HoldTime:         duration{debounce.DefaultHoldTime},
			CommitLabel:      debounce.DefaultCommitLabel,
			DeleteLabel:      debounce.DefaultDeleteLabel,
			SpaceLabel:       debounce.DefaultSpaceLabel,
			CommitConfidence: debounce.DefaultCommitConfidence,
		},
		Speech: SpeechConfig{
			VoiceCount: 5,
			Stability:  -1,
			Similarity: -1,
			Output:     "output.mp3",
		},
		Plugins: PluginConfig{
			Dir:          filepath.Join(dataDir, "plugins"),
			CommitAction: "type",
		},
		DataDir: dataDir,
	}
}

// Load returns Default overlaid with the TOML file at path and then the
// environment. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Speech.APIKey = getenv("ELEVEN_LABS_API_KEY", c.Speech.APIKey)
	c.Speech.Voice = getenv("MUDRA_VOICE", c.Speech.Voice)
	c.Server.Addr = getenv("MUDRA_HTTP_ADDR", c.Server.Addr)
	c.SentryDSN = getenv("SENTRY_DSN", c.SentryDSN)
	c.DataDir = getenv("MUDRA_DATA_DIR", c.DataDir)
	if v := os.Getenv("MUDRA_CAMERA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Camera.Device = n
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Typing.HoldTime.Duration < 0 {
		return fmt.Errorf("typing.hold_time must not be negative")
	}
	if c.Typing.CommitConfidence < 0 || c.Typing.CommitConfidence > 1 {
		return fmt.Errorf("typing.commit_confidence must be within [0, 1]")
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive")
	}
	if c.Speech.Output == "" {
		return fmt.Errorf("speech.output is required")
	}
	return nil
}

// DebounceConfig converts the typing section for the debouncer.
func (t TypingConfig) DebounceConfig() debounce.Config {
	return debounce.Config{
		HoldTime:         t.HoldTime.Duration,
		CommitLabel:      t.CommitLabel,
		DeleteLabel:      t.DeleteLabel,
		SpaceLabel:       t.SpaceLabel,
		CommitConfidence: t.CommitConfidence,
		RequireRelease:   t.RequireRelease,
	}
}

// DBPath is where the session database lives.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
