package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"dictate/audio"
	"dictate/clipboard"
	"dictate/config"
	"dictate/hotkey"
	"dictate/prompt"
	"dictate/rewrite"
	"dictate/transcriber"
)

const (
	pressTimeout     = 10 * time.Second
	clipboardTimeout = 3 * time.Second
	sampleSentence   = "um so this is a quick check of the dictation pipeline"
)

// Env is what the standard checks inspect.
type Env struct {
	Config    *config.Config
	ConfigErr error
	// WavFile, when set, is transcribed and rewritten for real.
	WavFile string
	// WaitForPress asks the user to press the push-to-talk key.
	WaitForPress bool
	Out          func(format string, args ...any)
}

// Checks returns the standard diagnostics for env.
func Checks(env Env) []Check {
	if env.Out == nil {
		env.Out = func(string, ...any) {}
	}
	checks := []Check{
		{Name: "Configuration", Run: env.checkConfig},
		{Name: "Hotkey", Run: env.checkHotkey},
		{Name: "Microphone", Run: env.checkMicrophone},
		{Name: "Transcription", Run: env.checkTranscriber},
		{Name: "Rewrite", Run: env.checkRewrite},
		{Name: "Clipboard and paste", Run: checkClipboard},
	}
	return checks
}

func (e Env) checkConfig(context.Context) (string, error) {
	if e.ConfigErr != nil {
		return "", e.ConfigErr
	}
	if e.Config == nil {
		return "", errors.New("no configuration loaded")
	}
	src := e.Config.Source()
	if src == "" {
		src = "defaults and environment"
	}
	return fmt.Sprintf("mode=%s key=%s backend=%s (from %s)",
		e.Config.Mode, e.Config.PTTKey, e.Config.Transcriber.Backend, src), nil
}

func (e Env) checkHotkey(ctx context.Context) (string, error) {
	msg, err := hotkey.Diagnose()
	if err != nil {
		return "", err
	}
	if !e.WaitForPress || e.Config == nil {
		return msg, nil
	}

	key, err := hotkey.ParseKey(e.Config.PTTKey)
	if err != nil {
		return "", err
	}
	hk, err := hotkey.New(key)
	if err != nil {
		return "", err
	}
	if err := hk.Register(); err != nil {
		return "", fmt.Errorf("register %s: %w", key.Name, err)
	}
	defer hk.Unregister()
	defer resetTerminal()

	e.Out("  Press %s...\n", key.Name)
	select {
	case <-hk.Keydown():
	case <-time.After(pressTimeout):
		return "", errors.New("timeout waiting for key press")
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case <-hk.Keyup():
	case <-time.After(5 * time.Second):
	}
	return msg + ", " + key.Name + " press detected", nil
}

func (e Env) checkMicrophone(context.Context) (string, error) {
	ctx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", audio.ErrNoDevices
	}
	for _, d := range devices {
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = " (bluetooth, lower quality)"
		}
		e.Out("    - %s%s\n", d.Name, note)
	}
	if e.Config != nil && e.Config.Device != "" {
		d, err := audio.FindDevice(ctx, e.Config.Device)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d devices, configured device %q present", len(devices), d.Name), nil
	}
	return fmt.Sprintf("%d capture devices", len(devices)), nil
}

func (e Env) transcriberConfig() transcriber.Config {
	c := e.Config
	return transcriber.Config{
		Backend:      c.Transcriber.Backend,
		Language:     c.Transcriber.Language,
		GroqAPIKey:   c.GroqAPIKey,
		OpenAIAPIKey: c.OpenAIAPIKey,
		WhisperBin:   c.Transcriber.WhisperBin,
		WhisperModel: c.Transcriber.WhisperModel,
	}
}

func (e Env) checkTranscriber(ctx context.Context) (string, error) {
	if e.Config == nil {
		return "", errors.New("needs a valid configuration")
	}
	tc := e.transcriberConfig()
	if tc.Backend == transcriber.BackendWhisper {
		if _, err := exec.LookPath(tc.WhisperBin); err != nil {
			return "", fmt.Errorf("whisper binary: %w", err)
		}
		if _, err := os.Stat(tc.WhisperModel); err != nil {
			return "", fmt.Errorf("whisper model: %w", err)
		}
	}
	tr, err := transcriber.New(tc)
	if err != nil {
		return "", err
	}
	if e.WavFile == "" {
		return tr.Name() + " configured (pass a WAV file to transcribe it)", nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	text, err := tr.Transcribe(ctx, e.WavFile)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		text = "(no speech detected)"
	}
	return fmt.Sprintf("%s: %s", tr.Name(), text), nil
}

func (e Env) checkRewrite(ctx context.Context) (string, error) {
	if e.Config == nil {
		return "", errors.New("needs a valid configuration")
	}
	r := e.Config.Rewrite
	rw, err := rewrite.New(rewrite.Config{
		APIKey:      r.APIKey,
		BaseURL:     r.BaseURL,
		Model:       r.Model,
		Temperature: r.Temperature,
		Timeout:     r.Timeout,
	})
	if err != nil {
		return "", err
	}
	if e.WavFile == "" {
		return "model " + r.Model + " configured", nil
	}
	mode, err := prompt.ParseMode(e.Config.Mode)
	if err != nil {
		return "", err
	}
	out, err := rw.Rewrite(ctx, sampleSentence, mode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %q", r.Model, out), nil
}

func checkClipboard(context.Context) (string, error) {
	want := fmt.Sprintf("dictate-doctor-%d", time.Now().UnixNano())

	type result struct {
		got   string
		err   error
		phase string
	}
	ch := make(chan result, 1)
	go func() {
		if err := clipboard.Copy(want); err != nil {
			ch <- result{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		ch <- result{got: got, err: err, phase: "read"}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("clipboard %s failed: %w", res.phase, res.err)
		}
		if res.got != want {
			return "", fmt.Errorf("clipboard mismatch: wrote %q, got %q", want, res.got)
		}
	case <-time.After(clipboardTimeout):
		return "", errors.New("clipboard timed out (clipboard tool hung, compositor not accessible?)")
	}

	msg, err := clipboard.Verify()
	if err != nil {
		return "", fmt.Errorf("paste: %w", err)
	}
	return "write/read verified, " + msg, nil
}
