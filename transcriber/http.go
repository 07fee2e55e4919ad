package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"dictate/encoder"
	"dictate/log"
)

type parseFunc func(resp *TracedResponse) (*Result, error)

// baseTranscriber uploads an audio file to an OpenAI-compatible
// /audio/transcriptions endpoint.
type baseTranscriber struct {
	name           string
	client         *TracedClient
	apiURL         string
	apiKey         string
	model          string
	responseFormat string
	lang           string
	parse          parseFunc
}

func (b *baseTranscriber) Name() string { return b.name }

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// Warm opens a connection ahead of the upload.
func (b *baseTranscriber) Warm() {
	d, err := b.client.WarmConnection(context.Background(), b.apiURL)
	if err != nil {
		log.Debugf("%s: warm connection failed: %v", b.name, err)
		return
	}
	log.Debugf("%s: warm connection tls=%s", b.name, d)
}

func (b *baseTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	format, err := encoder.FormatForPath(path)
	if err != nil {
		return "", err
	}

	result, err := b.upload(ctx, audio, format)
	if err != nil {
		return "", err
	}

	m := result.Metrics
	log.TranscriptionMetrics(log.Metrics{
		Provider:    b.name,
		AudioKB:     float64(len(audio)) / 1024,
		DNSTimeMs:   float64(m.DNS.Milliseconds()),
		TLSTimeMs:   float64(m.TLS.Milliseconds()),
		TTFBMs:      float64(m.TTFB.Milliseconds()),
		TotalTimeMs: float64(m.Total.Milliseconds()),
		ConnReused:  m.ConnReused,
		RateLimit:   result.RateLimit,
	})

	if isNoSpeech(result) {
		return "", nil
	}
	return strings.TrimSpace(result.Text), nil
}

func (b *baseTranscriber) upload(ctx context.Context, audio []byte, format string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}

	writer.WriteField("model", b.model)
	writer.WriteField("response_format", b.responseFormat)
	if b.lang != "" {
		writer.WriteField("language", b.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", b.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s API error %d: %s", b.name, resp.StatusCode, log.Preview(string(resp.Body), 200))
	}

	result, err := b.parse(resp)
	if err != nil {
		return nil, fmt.Errorf("%s response parse error: %w", b.name, err)
	}
	result.Metrics = resp.Metrics
	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")
	result.RateLimit = remaining + "/" + limit
	return result, nil
}

// Whisper models emit filler like "Thank you." on silent input. A result is
// treated as silence when every segment is likely non-speech.
const noSpeechThreshold = 0.8

func isNoSpeech(r *Result) bool {
	if strings.TrimSpace(r.Text) == "" {
		return true
	}
	if len(r.Segments) == 0 {
		return false
	}
	for _, s := range r.Segments {
		if s.NoSpeechProb < noSpeechThreshold {
			return false
		}
	}
	return true
}
