package config

import (
	"fmt"
	"strings"

	"dictate/hotkey"
	"dictate/prompt"
)

const (
	BackendGroq    = "groq"
	BackendOpenAI  = "openai"
	BackendWhisper = "whisper"
)

// Validate normalizes the configuration and rejects anything that would
// leave the session unable to run. It is called once, before startup.
func (c *Config) Validate() error {
	mode, err := prompt.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	c.Mode = string(mode)

	key, err := hotkey.ParseKey(c.PTTKey)
	if err != nil {
		return fmt.Errorf("ptt_key: %w", err)
	}
	c.PTTKey = key.Name

	c.AudioFormat = strings.ToLower(strings.TrimSpace(c.AudioFormat))
	switch c.AudioFormat {
	case "wav", "flac":
	default:
		return fmt.Errorf("audio_format: %q is not supported (use wav or flac)", c.AudioFormat)
	}

	c.Transcriber.Backend = strings.ToLower(strings.TrimSpace(c.Transcriber.Backend))
	switch c.Transcriber.Backend {
	case BackendGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("transcriber groq: %w (set GROQ_API_KEY)", ErrMissingKey)
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("transcriber openai: %w (set OPENAI_API_KEY)", ErrMissingKey)
		}
	case BackendWhisper:
		if c.Transcriber.WhisperModel == "" {
			return fmt.Errorf("transcriber whisper: transcriber.whisper_model is required")
		}
		if c.Transcriber.WhisperBin == "" {
			return fmt.Errorf("transcriber whisper: transcriber.whisper_bin is required")
		}
	default:
		return fmt.Errorf("transcriber.backend: %q is not supported (use groq, openai or whisper)", c.Transcriber.Backend)
	}

	if c.Rewrite.APIKey == "" {
		if strings.Contains(c.Rewrite.BaseURL, "groq.com") {
			c.Rewrite.APIKey = c.GroqAPIKey
		} else {
			c.Rewrite.APIKey = c.OpenAIAPIKey
		}
	}
	// A custom base URL may be a local server that needs no key.
	if c.Rewrite.APIKey == "" && (c.Rewrite.BaseURL == "" || strings.Contains(c.Rewrite.BaseURL, "groq.com")) {
		return fmt.Errorf("rewrite: %w (set OPENAI_API_KEY or rewrite.api_key)", ErrMissingKey)
	}
	if c.Rewrite.Model == "" {
		return fmt.Errorf("rewrite.model is required")
	}
	if c.Rewrite.Timeout <= 0 {
		return fmt.Errorf("rewrite.timeout must be positive")
	}
	return nil
}
