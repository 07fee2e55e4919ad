package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"dictate/log"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// WhisperCpp runs a local whisper.cpp binary (whisper-cli) per utterance.
type WhisperCpp struct {
	bin   string
	model string
	lang  string
	run   runFunc
}

func NewWhisperCpp(bin, model, lang string) *WhisperCpp {
	return &WhisperCpp{bin: bin, model: model, lang: lang, run: runCommand}
}

func (w *WhisperCpp) Name() string { return "whisper" }

func (w *WhisperCpp) args(path string) []string {
	args := []string{"-m", w.model, "-f", path, "-nt"}
	if w.lang != "" {
		args = append(args, "-l", w.lang)
	}
	return args
}

func (w *WhisperCpp) Transcribe(ctx context.Context, path string) (string, error) {
	start := time.Now()
	out, err := w.run(ctx, w.bin, w.args(path)...)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp: %w", err)
	}
	log.Debugf("whisper.cpp finished in %s", time.Since(start).Round(time.Millisecond))
	return cleanWhisperOutput(string(out)), nil
}

// whisper.cpp marks silence and sounds with bracketed tags.
var whisperTag = regexp.MustCompile(`\[[A-Z_ ]+\]`)

func cleanWhisperOutput(s string) string {
	s = whisperTag.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, log.Preview(msg, 200))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
