package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text         string
	NoSpeechProb float64
	AvgLogProb   float64
	Start        float64
	End          float64
}

type Result struct {
	Text      string
	Metrics   *NetworkMetrics
	RateLimit string
	Duration  float64
	Segments  []Segment
}

// Transcriber converts an audio file to text. An empty string with a nil
// error means no speech was detected.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, path string) (string, error)
}

const (
	BackendGroq    = "groq"
	BackendOpenAI  = "openai"
	BackendWhisper = "whisper"
)

type Config struct {
	Backend      string
	Language     string
	GroqAPIKey   string
	OpenAIAPIKey string
	WhisperBin   string
	WhisperModel string
}

func New(cfg Config) (Transcriber, error) {
	switch cfg.Backend {
	case BackendGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("groq transcriber: GROQ_API_KEY is not set")
		}
		g := NewGroq(cfg.GroqAPIKey)
		g.SetLanguage(cfg.Language)
		return g, nil
	case BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai transcriber: OPENAI_API_KEY is not set")
		}
		o := NewOpenAI(cfg.OpenAIAPIKey)
		o.SetLanguage(cfg.Language)
		return o, nil
	case BackendWhisper:
		return NewWhisperCpp(cfg.WhisperBin, cfg.WhisperModel, cfg.Language), nil
	default:
		return nil, fmt.Errorf("unknown transcriber backend %q", cfg.Backend)
	}
}
