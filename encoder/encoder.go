package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// Encoder turns 16 kHz mono PCM into a complete audio file. Bytes is only
// valid after Close.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

func New(format string) (Encoder, error) {
	switch format {
	case FormatWAV:
		return NewWav(), nil
	case FormatFLAC:
		return NewFlac()
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case FormatWAV, FormatFLAC:
		return ext, nil
	}
	return "", fmt.Errorf("unsupported audio file extension %q", filepath.Ext(path))
}

// WriteFile encodes samples in BlockSize blocks and writes the result to
// path in the format its extension names.
func WriteFile(path string, samples []int16) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	enc, err := New(format)
	if err != nil {
		return err
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return err
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", format, err)
	}
	if err := os.WriteFile(path, enc.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing audio file: %w", err)
	}
	return nil
}
