package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"dictate/audio"
	"dictate/beep"
	"dictate/clipboard"
	"dictate/config"
	"dictate/encoder"
	"dictate/hotkey"
	"dictate/log"
	"dictate/pipeline"
)

// outcomes signals once per finished utterance so WAIT can block on it.
type outcomes chan struct{}

func (o outcomes) StateChanged(pipeline.State) {}

func (o outcomes) Delivered(pipeline.Utterance) { o.signal() }

func (o outcomes) Abandoned(pipeline.Utterance, pipeline.Reason) { o.signal() }

func (o outcomes) signal() {
	select {
	case o <- struct{}{}:
	default:
	}
}

// runTestMode replays stdin commands against a pipeline fed from a WAV file.
func runTestMode(cfg *config.Config, wavPath string, fake bool) int {
	beep.Disable()

	tr, rw, err := services(cfg, fake)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	initPaste(cfg)

	fakeCtx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}
	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate, Channels: encoder.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		return 1
	}
	defer capture.Close()

	hk := hotkey.NewFake()
	stats := newSessionStats()
	done := make(outcomes, 16)

	orch, err := pipeline.New(settings(cfg),
		audio.NewRecorder(capture),
		tr, rw,
		clipboard.NewInjector(cfg.RestoreClipboard),
		hotkey.NewSignal(hk),
		pipeline.WithObserver(fanout{stats, done}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log.SessionStart(cfg.Mode, cfg.PTTKey, tr.Name(), cfg.AutoPaste)

	go func() {
		driveTest(os.Stdin, hk, capture.(*audio.FakeCapture), done)
		orch.Stop()
	}()

	if err := orch.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SessionEnd(stats.Count())
	return 0
}

// driveTest reads KEYDOWN, KEYUP, WAIT, WAIT_AUDIO_DONE, SLEEP <ms> and QUIT
// commands until QUIT or EOF.
func driveTest(r io.Reader, hk *hotkey.FakeHotkey, capture *audio.FakeCapture, done outcomes) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "KEYDOWN":
			hk.SimKeydown()
		case "KEYUP":
			hk.SimKeyup()
		case "WAIT":
			<-done
		case "WAIT_AUDIO_DONE":
			<-capture.AudioDone()
		case "QUIT":
			return
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				if n, err := strconv.Atoi(ms); err == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
				}
			}
		}
	}
}
