package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/playback"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
	"github.com/ayusman/mudra/internal/tts"
)

// voiceCacheTTL is how long the voice list is reused by the HTTP API.
const voiceCacheTTL = 10 * time.Minute

// speechTimeout bounds synthesis of the final text.
const speechTimeout = 60 * time.Second

func main() {
	fmt.Println("Mudra - Gesture Typing")

	cfg := loadConfig()

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: getEnvironment(),
		})
		if err != nil {
			log.Printf("sentry init failed: %v", err)
		} else {
			log.Printf("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		fatal(cfg, "Failed to initialize store: %v", err)
	}
	defer st.Close()

	var synth *tts.ElevenLabsClient
	var voices *tts.CachedVoices
	var voice tts.Voice
	if cfg.Speech.APIKey == "" {
		log.Println("ELEVEN_LABS_API_KEY not set, speech is disabled")
	} else {
		synth = tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:     cfg.Speech.APIKey,
			ModelID:    cfg.Speech.ModelID,
			Stability:  cfg.Speech.Stability,
			Similarity: cfg.Speech.Similarity,
		})
		voices = tts.NewCachedVoices(synth, voiceCacheTTL)
		voice = chooseVoice(st, voices, cfg.Speech)
	}

	hook := commitHook(cfg.Plugins)

	classify, err := classifier.NewMediaPipeClassifier(classifier.Config{
		ModelPath:     cfg.Classifier.ModelPath,
		NumHands:      cfg.Classifier.NumHands,
		MinConfidence: cfg.Classifier.MinConfidence,
	})
	if err != nil {
		fatal(cfg, "Failed to initialize gesture classifier: %v", err)
	}

	appCfg := app.Config{
		Camera: capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.Device,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
			Mirror:   cfg.Camera.Mirror,
		}),
		Classifier:   classify,
		Debounce:     cfg.Typing.DebounceConfig(),
		Store:        st,
		VoiceID:      voice.ID,
		VoiceName:    voice.Name,
		EncodeFrames: cfg.Server.Addr != "",
	}
	if hook != nil {
		appCfg.CommitHook = hook
	}
	a := app.New(appCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		fatal(cfg, "Failed to start: %v", err)
	}

	var wg sync.WaitGroup
	if cfg.Server.Addr != "" {
		srvCfg := server.Config{
			StaticDir: findWebDir(cfg.DataDir),
			Store:     st,
			State:     a,
			Frames:    a,
		}
		if voices != nil {
			srvCfg.Voices = voices
			srvCfg.VoiceCount = cfg.Speech.VoiceCount
			srvCfg.SelectedVoice = func() string { return voice.ID }
		}

		srv := server.New(srvCfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Starting server on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
	}

	if cfg.Tray {
		runWithTray(ctx, stop, a, cfg.Server.Addr)
	} else {
		var sink app.FrameSink
		if !cfg.Headless {
			window := gocv.NewWindow("Gesture Typing")
			defer window.Close()
			sink = windowSink(window)
		}
		if err := a.Run(ctx, sink); err != nil {
			log.Printf("Capture stopped: %v", err)
		}
	}

	stop()
	text, err := a.Finish()
	if err != nil {
		log.Printf("Error finishing session: %v", err)
		sentry.CaptureException(err)
	}
	wg.Wait()

	fmt.Printf("Final text: %q\n", text)

	if synth == nil || voice.ID == "" {
		return
	}
	out := speak(cfg, synth, voice, text)
	if out == "" {
		return
	}

	if id := a.SessionID(); id != "" {
		if err := st.Sessions().Finish(id, text, out); err != nil {
			log.Printf("Error recording audio path: %v", err)
		}
	}

	if cfg.Speech.Play {
		playCtx, stopPlay := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stopPlay()
		if err := playback.Play(playCtx, out); err != nil {
			log.Printf("Error playing audio: %v", err)
		}
	}
}

// loadConfig reads the config file and applies command-line flags on top.
func loadConfig() config.Config {
	configPath := flag.String("config", config.DefaultFile, "path to the TOML config file")
	camera := flag.Int("camera", 0, "camera device index")
	voiceName := flag.String("voice", "", "voice name or ID (one of the first five voices)")
	out := flag.String("out", "", "output MP3 path")
	httpAddr := flag.String("http", "", "HTTP status server address, e.g. :8080")
	useTray := flag.Bool("tray", false, "show a menu bar icon instead of the preview window")
	headless := flag.Bool("headless", false, "run without the preview window")
	play := flag.Bool("play", false, "play the audio after saving it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "camera":
			cfg.Camera.Device = *camera
		case "voice":
			cfg.Speech.Voice = *voiceName
		case "out":
			cfg.Speech.Output = *out
		case "http":
			cfg.Server.Addr = *httpAddr
		case "tray":
			cfg.Tray = *useTray
		case "headless":
			cfg.Headless = *headless
		case "play":
			cfg.Speech.Play = *play
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

// chooseVoice picks the session voice: the configured preference, else the
// one remembered from the last run, else the first listed. The choice is
// remembered for next time.
func chooseVoice(st *store.Store, voices tts.VoiceLister, cfg config.SpeechConfig) tts.Voice {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := voices.ListVoices(ctx)
	if err != nil {
		log.Printf("Error fetching voices: %v", err)
		sentry.CaptureException(err)
		return tts.Voice{}
	}

	candidates := tts.Top(list, cfg.VoiceCount)
	fmt.Println("Available voices:")
	for i, v := range candidates {
		fmt.Printf("%d. %s\n", i+1, v.Name)
	}

	preferred := cfg.Voice
	if preferred == "" {
		if saved, err := st.Settings().Get(store.SettingVoice); err == nil {
			preferred = saved
		}
	}

	voice, err := tts.SelectVoice(list, cfg.VoiceCount, preferred)
	if err != nil {
		log.Printf("No voice available: %v", err)
		return tts.Voice{}
	}
	log.Printf("Selected voice: %s", voice.Name)

	if err := st.Settings().Set(store.SettingVoice, voice.ID); err != nil {
		log.Printf("Error saving voice: %v", err)
	}
	return voice
}

// commitHook builds the configured commit plugin hook, or nil.
func commitHook(cfg config.PluginConfig) *plugin.Hook {
	if cfg.CommitPlugin == "" {
		return nil
	}

	manager := plugin.NewManager(cfg.Dir)
	if err := manager.Discover(); err != nil {
		log.Printf("Error discovering plugins: %v", err)
		return nil
	}
	if _, err := manager.Get(cfg.CommitPlugin); err != nil {
		log.Printf("Commit plugin unavailable: %v", err)
		return nil
	}

	hook := plugin.NewHook(manager, plugin.NewExecutor(plugin.DefaultTimeout), cfg.CommitPlugin, cfg.CommitAction, nil)
	log.Printf("Commit hook: %s", hook)
	return hook
}

// runWithTray runs the capture loop in the background while the tray owns
// the main thread. Quitting from the menu ends the session.
func runWithTray(ctx context.Context, stop context.CancelFunc, a *app.App, httpAddr string) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnQuit(stop)
	a.OnEvent(t.SetEvent)
	if httpAddr != "" {
		t.OnOpen(func() { openBrowser(statusURL(httpAddr)) })
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Run(ctx, nil); err != nil {
			log.Printf("Capture stopped: %v", err)
		}
		t.Quit()
	}()

	t.Run()
	stop()
	<-done
}

// windowSink shows frames in window and stops on 'q' or Escape.
func windowSink(window *gocv.Window) app.FrameSink {
	return app.FrameSinkFunc(func(frame *gocv.Mat) bool {
		window.IMShow(*frame)
		key := window.WaitKey(1)
		return key != 'q' && key != 27
	})
}

// speak saves the final text as speech and returns the output path, or ""
// when nothing was written.
func speak(cfg config.Config, synth tts.Synthesizer, voice tts.Voice, text string) string {
	ctx, cancel := context.WithTimeout(context.Background(), speechTimeout)
	defer cancel()

	n, err := tts.SaveSpeech(ctx, synth, text, voice.ID, cfg.Speech.Output)
	if errors.Is(err, tts.ErrEmptyText) {
		log.Println("No text to synthesize")
		return ""
	}
	if err != nil {
		log.Printf("Error synthesizing speech: %v", err)
		sentry.CaptureException(err)
		return ""
	}

	log.Printf("Audio saved as %s (%d bytes, voice %s)", cfg.Speech.Output, n, voice.Name)
	return cfg.Speech.Output
}

// fatal reports err to Sentry when configured and exits.
func fatal(cfg config.Config, format string, err error) {
	if cfg.SentryDSN != "" {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
	}
	log.Fatalf(format, err)
}

func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	if err := exec.Command("open", url).Start(); err != nil {
		log.Printf("Error opening browser: %v", err)
	}
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

// findWebDir searches for the status page directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
