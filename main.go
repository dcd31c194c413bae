package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"earshot/audio"
	"earshot/log"
)

var version = "dev"

func main() {
	apiKeyFlag := flag.String("apikey", "", "Gemini API key (overrides GEMINI_API_KEY)")
	profileFlag := flag.String("profile", "", "Conversation profile (e.g., interview, sales-call)")
	langFlag := flag.String("lang", "", "Response language (e.g., en, es). Empty = model default")
	promptFlag := flag.String("prompt", "", "Extra system prompt text")
	captureFlag := flag.String("capture-cmd", "", "Helper command producing speaker PCM on stdout")
	captureChansFlag := flag.Int("capture-channels", 2, "Channel count of the capture command output")
	fakeFlag := flag.String("fake", "", "Replay a WAV file instead of live capture (demo/test)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("earshot %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	cfg := &Config{
		APIKey:          *apiKeyFlag,
		Profile:         *profileFlag,
		Language:        *langFlag,
		CustomPrompt:    *promptFlag,
		CaptureChannels: *captureChansFlag,
		FakeWAV:         *fakeFlag,
		DeviceName:      *deviceFlag,
		Setup:           *setupFlag,
		LogPath:         *logPathFlag,
	}
	if *captureFlag != "" {
		parts := strings.Fields(*captureFlag)
		cfg.CaptureCmd = parts[0]
		cfg.CaptureArgs = parts[1:]
	}
	if err := loadConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := NewApp(cfg, tuiSink{})

	micDevice, micCtx, err := openMicCapture(cfg)
	if err != nil {
		log.Errorf("mic capture init: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing microphone capture: %v\n", err)
		os.Exit(1)
	}
	defer micCtx.Close()
	defer micDevice.Close()

	spkDevice, spkClose, err := openSpeakerCapture(cfg)
	if err != nil {
		log.Errorf("speaker capture init: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing speaker capture: %v\n", err)
		os.Exit(1)
	}
	defer spkClose()

	micDevice.SetCallback(func(data []byte, _ uint32) {
		app.Ingest(audio.SourceInterviewee, data)
	})
	spkDevice.SetCallback(func(data []byte, _ uint32) {
		app.Ingest(audio.SourceInterviewer, data)
	})

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(app)
	tuiMu.Unlock()

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting session: %v\n", err)
		os.Exit(1)
	}
	if err := micDevice.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting microphone: %v\n", err)
		os.Exit(1)
	}
	if err := spkDevice.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting speaker capture: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		tuiProgram.Quit()
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}

	micDevice.Stop()
	spkDevice.Stop()
	app.Close()
}

// openMicCapture returns the interviewee capture device: live malgo by
// default, a WAV replay in fake mode.
func openMicCapture(cfg *Config) (audio.CaptureDevice, audio.Context, error) {
	var ctx audio.Context
	var err error
	if cfg.FakeWAV != "" {
		ctx, err = audio.NewFakeContext(cfg.FakeWAV, true)
	} else {
		ctx, err = audio.NewContext()
	}
	if err != nil {
		return nil, nil, err
	}

	var selected *audio.DeviceInfo
	if cfg.DeviceName != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == cfg.DeviceName {
					selected = &devices[i]
					break
				}
			}
		}
	} else if cfg.Setup {
		selected, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selected = nil
		}
	}

	dev, err := ctx.NewCapture(selected, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		ctx.Close()
		return nil, nil, err
	}
	return dev, ctx, nil
}

// openSpeakerCapture returns the interviewer capture device. With no
// capture command configured, fake mode replays silence so the pipeline
// still runs end to end.
func openSpeakerCapture(cfg *Config) (audio.CaptureDevice, func(), error) {
	if cfg.CaptureCmd != "" {
		dev := audio.NewCommandCapture(cfg.CaptureCmd, cfg.CaptureChannels, cfg.CaptureArgs...)
		return dev, dev.Close, nil
	}
	if cfg.FakeWAV != "" {
		ctx, err := audio.NewFakeContext(cfg.FakeWAV, true)
		if err != nil {
			return nil, nil, err
		}
		dev, err := ctx.NewCapture(nil, audio.CaptureConfig{SampleRate: audio.SampleRate, Channels: audio.Channels})
		if err != nil {
			ctx.Close()
			return nil, nil, err
		}
		return dev, func() { dev.Close(); ctx.Close() }, nil
	}
	return nil, nil, fmt.Errorf("no speaker capture configured (use -capture-cmd or -fake)")
}
