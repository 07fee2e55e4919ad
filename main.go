package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"dictate/audio"
	"dictate/beep"
	"dictate/clipboard"
	"dictate/config"
	"dictate/doctor"
	"dictate/encoder"
	"dictate/hotkey"
	"dictate/log"
	"dictate/metrics"
	"dictate/pipeline"
	"dictate/prompt"
	"dictate/rewrite"
	"dictate/shutdown"
	"dictate/transcriber"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"
)

var version = "dev"

// recordTail keeps the microphone open briefly after release so the last
// word is not clipped.
const recordTail = 250 * time.Millisecond

// fakeTranscriptEnv swaps in offline transcription and rewrite for -test runs.
const fakeTranscriptEnv = "DICTATE_FAKE_TRANSCRIPT"

type cliFlags struct {
	mode       *string
	key        *string
	autoPaste  *bool
	configFile *string
	envFile    *string
	logPath    *string
	device     *string
	format     *string
	setup      *bool
	version    *bool
	doctor     *bool
	test       *bool
	tui        *bool
	listKeys   *bool
	metrics    *string
}

func parseFlags() cliFlags {
	f := cliFlags{
		mode:       flag.String("mode", "", "Output style: email or message (default from config, else message)"),
		key:        flag.String("key", "", "Push-to-talk key, e.g. f9, right_ctrl, ctrl+shift+space"),
		autoPaste:  flag.Bool("autopaste", true, "Auto-paste to focused window after delivery"),
		configFile: flag.String("config", "", "Path to config.yml (default: search ./, ./config, user config dir)"),
		envFile:    flag.String("env", ".env", "Path to .env file with API keys"),
		logPath:    flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)"),
		device:     flag.String("device", "", "Use named microphone device"),
		format:     flag.String("format", "", "Audio file format sent to the transcriber: wav or flac"),
		setup:      flag.Bool("setup", false, "Select microphone device (otherwise uses system default)"),
		version:    flag.Bool("version", false, "Print version and exit"),
		doctor:     flag.Bool("doctor", false, "Run system diagnostics and exit (optional WAV file argument)"),
		test:       flag.Bool("test", false, "Test mode (headless, stdin-driven)"),
		tui:        flag.Bool("tui", term.IsTerminal(int(os.Stdout.Fd())), "Run with terminal UI"),
		listKeys:   flag.Bool("keys", false, "List supported push-to-talk keys and exit"),
		metrics:    flag.String("metrics", "", "Serve Prometheus metrics on addr (e.g., localhost:9464)"),
	}
	flag.Parse()
	return f
}

// apply copies explicitly set flags over the loaded configuration.
func (f cliFlags) apply(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "mode":
			cfg.Mode = *f.mode
		case "key":
			cfg.PTTKey = *f.key
		case "autopaste":
			cfg.AutoPaste = *f.autoPaste
		case "device":
			cfg.Device = *f.device
		case "format":
			cfg.AudioFormat = *f.format
		}
	})
}

func fatalf(format string, args ...any) {
	failf(format, args...)
	log.Close()
	os.Exit(1)
}

// failf reports a fatal error and returns the exit code, leaving the
// caller's deferred cleanup to run.
func failf(format string, args ...any) int {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return 1
}

func run() {
	f := parseFlags()

	if *f.version {
		fmt.Printf("dictate %s\n", version)
		os.Exit(0)
	}
	if *f.listKeys {
		fmt.Println(strings.Join(hotkey.KeyNames(), "\n"))
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	loadOpts := []config.Option{config.WithEnvFile(*f.envFile)}
	if *f.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(*f.configFile))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	f.apply(cfg)

	fake := *f.test && os.Getenv(fakeTranscriptEnv) != ""
	verr := cfg.Validate()
	if fake && errors.Is(verr, config.ErrMissingKey) {
		verr = nil
	}

	if *f.doctor {
		wavFile := ""
		if len(flag.Args()) > 0 {
			wavFile = flag.Args()[0]
		}
		ctx, stop := shutdown.Context(context.Background())
		defer stop()
		if verr != nil {
			cfg = nil
		}
		checks := doctor.Checks(doctor.Env{
			Config:       cfg,
			ConfigErr:    verr,
			WavFile:      wavFile,
			WaitForPress: term.IsTerminal(int(os.Stdin.Fd())),
			Out:          func(format string, args ...any) { fmt.Printf(format, args...) },
		})
		os.Exit(doctor.Run(ctx, os.Stdout, checks))
	}

	if verr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", verr)
		os.Exit(1)
	}

	logOpts := log.Options{Level: cfg.LogLevel}
	if !*f.tui || *f.test {
		logOpts.Console = os.Stderr
	}
	if err := log.Init(logOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	var code int
	if *f.test {
		args := flag.Args()
		if len(args) == 0 {
			fatalf("usage: dictate -test <wav-file>")
		}
		code = runTestMode(cfg, args[0], fake)
	} else {
		code = runLive(cfg, *f.setup, *f.tui, *f.metrics)
	}
	log.Close()
	os.Exit(code)
}

func transcriberConfig(cfg *config.Config) transcriber.Config {
	return transcriber.Config{
		Backend:      cfg.Transcriber.Backend,
		Language:     cfg.Transcriber.Language,
		GroqAPIKey:   cfg.GroqAPIKey,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		WhisperBin:   cfg.Transcriber.WhisperBin,
		WhisperModel: cfg.Transcriber.WhisperModel,
	}
}

func rewriteConfig(cfg *config.Config) rewrite.Config {
	return rewrite.Config{
		APIKey:      cfg.Rewrite.APIKey,
		BaseURL:     cfg.Rewrite.BaseURL,
		Model:       cfg.Rewrite.Model,
		Temperature: cfg.Rewrite.Temperature,
		Timeout:     cfg.Rewrite.Timeout,
	}
}

// services builds the transcription and rewrite collaborators.
func services(cfg *config.Config, fake bool) (transcriber.Transcriber, pipeline.Rewriter, error) {
	if fake {
		return transcriber.NewFake(os.Getenv(fakeTranscriptEnv), nil), rewrite.NewFake("", nil), nil
	}
	tr, err := transcriber.New(transcriberConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	rw, err := rewrite.New(rewriteConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return tr, rw, nil
}

func settings(cfg *config.Config) pipeline.Settings {
	return pipeline.Settings{
		Mode:        prompt.Mode(cfg.Mode),
		AutoPaste:   cfg.AutoPaste,
		AudioFormat: cfg.AudioFormat,
	}
}

func initPaste(cfg *config.Config) {
	if !cfg.AutoPaste {
		return
	}
	if err := clipboard.Init(); err != nil {
		log.Warnf("paste init failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: paste init failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	}
}

func banner(cfg *config.Config, providerName string) {
	fmt.Println("dictate " + version)
	fmt.Printf("  mode:       %s\n", cfg.Mode)
	fmt.Printf("  key:        %s (hold to talk)\n", cfg.PTTKey)
	fmt.Printf("  auto-paste: %v\n", cfg.AutoPaste)
	fmt.Printf("  provider:   %s\n", providerName)
	fmt.Println("Press Ctrl+C to quit.")
}

// pickDevice returns nil for the system default. The only error it
// returns is audio.ErrSelectionCancelled.
func pickDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if name != "" {
		dev, err := audio.FindDevice(ctx, name)
		if err != nil {
			log.Warnf("%v, using system default", err)
			return nil, nil
		}
		return dev, nil
	}
	if !setup {
		return nil, nil
	}
	dev, err := audio.SelectDevice(ctx)
	if errors.Is(err, audio.ErrSelectionCancelled) {
		return nil, err
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		fmt.Println("Falling back to default device")
		return nil, nil
	}
	return dev, nil
}

func runLive(cfg *config.Config, setup, tui bool, metricsAddr string) int {
	tr, rw, err := services(cfg, false)
	if err != nil {
		return failf("%v", err)
	}
	key, err := hotkey.ParseKey(cfg.PTTKey)
	if err != nil {
		return failf("%v", err)
	}
	hk, err := hotkey.New(key)
	if err != nil {
		return failf("%v", err)
	}

	initPaste(cfg)

	actx, err := audio.NewContext()
	if err != nil {
		return failf("initializing audio context: %v", err)
	}
	defer actx.Close()

	dev, err := pickDevice(actx, cfg.Device, setup)
	if err != nil {
		return 130
	}
	capture, err := actx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return failf("initializing capture device: %v", err)
	}
	defer capture.Close()
	log.Info("recording_device: " + capture.DeviceName())

	if cfg.Beep {
		go beep.Init()
	} else {
		beep.Disable()
	}

	stats := newSessionStats()
	observers := fanout{stats}
	if cfg.Beep {
		observers = append(observers, beep.NewCues())
	}
	if cfg.Notify {
		observers = append(observers, beep.NewNotifier())
	}
	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		observers = append(observers, metrics.New(reg))
	}

	var ui *tuiView
	recOpts := []audio.RecorderOption{audio.WithTail(recordTail)}
	if tui {
		ui = newTUIView(tuiInfo{
			Mode:     cfg.Mode,
			Key:      cfg.PTTKey,
			Provider: tr.Name(),
			Device:   capture.DeviceName(),
			Paste:    cfg.AutoPaste,
		}, stats)
		observers = append(observers, ui)
		recOpts = append(recOpts, audio.WithLevel(ui.Level))
	}

	orch, err := pipeline.New(settings(cfg),
		audio.NewRecorder(capture, recOpts...),
		tr, rw,
		clipboard.NewInjector(cfg.RestoreClipboard),
		hotkey.NewSignal(hk),
		pipeline.WithObserver(observers),
	)
	if err != nil {
		return failf("%v", err)
	}

	log.SessionStart(cfg.Mode, cfg.PTTKey, tr.Name(), cfg.AutoPaste)
	if ui == nil {
		banner(cfg, tr.Name())
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if reg != nil {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg); err != nil {
				log.Errorf("metrics server error: %v", err)
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
	}

	if ui != nil {
		go func() {
			if err := ui.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			orch.Stop()
		}()
	}

	runErr := orch.Run(ctx)
	if ui != nil {
		ui.Quit()
	}
	log.SessionEnd(stats.Count())
	if runErr != nil {
		return failf("%v", runErr)
	}
	return 0
}
