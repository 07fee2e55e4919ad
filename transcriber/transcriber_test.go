package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF....WAVEfake"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

type captured struct {
	auth, model, lang, format, filename string
	file                                []byte
}

func whisperServer(t *testing.T, status int, body string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got.model = r.FormValue("model")
		got.lang = r.FormValue("language")
		got.format = r.FormValue("response_format")
		if f, hdr, err := r.FormFile("file"); err == nil {
			got.filename = hdr.Filename
			got.file, _ = io.ReadAll(f)
			f.Close()
		}
		w.Header().Set("x-ratelimit-remaining-requests", "99")
		w.Header().Set("x-ratelimit-limit-requests", "100")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGroqTranscribe(t *testing.T) {
	var got captured
	srv := whisperServer(t, 200, `{"text":" hello world ","duration":1.2,"segments":[{"text":"hello world","no_speech_prob":0.01}]}`, &got)

	g := NewGroq("gsk_test")
	g.apiURL = srv.URL
	g.SetLanguage("en")

	text, err := g.Transcribe(context.Background(), writeAudio(t, "u.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello world" {
		t.Errorf("text = %q", text)
	}
	if got.auth != "Bearer gsk_test" || got.model != "whisper-large-v3-turbo" || got.lang != "en" || got.format != "verbose_json" {
		t.Errorf("request = %+v", got)
	}
	if got.filename != "audio.wav" || !strings.HasPrefix(string(got.file), "RIFF") {
		t.Errorf("file = %q %q", got.filename, got.file)
	}
}

func TestGroqNoSpeechSegments(t *testing.T) {
	var got captured
	srv := whisperServer(t, 200, `{"text":"Thank you.","segments":[{"text":"Thank you.","no_speech_prob":0.95}]}`, &got)

	g := NewGroq("k")
	g.apiURL = srv.URL
	text, err := g.Transcribe(context.Background(), writeAudio(t, "u.flac"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty for non-speech", text)
	}
	if got.filename != "audio.flac" {
		t.Errorf("filename = %q", got.filename)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	var got captured
	srv := whisperServer(t, 200, `{"text":"send the report"}`, &got)

	o := NewOpenAI("sk-test")
	o.apiURL = srv.URL
	text, err := o.Transcribe(context.Background(), writeAudio(t, "u.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "send the report" {
		t.Errorf("text = %q", text)
	}
	if got.model != "gpt-4o-transcribe" || got.format != "json" || got.lang != "" {
		t.Errorf("request = %+v", got)
	}
}

func TestTranscribeAPIError(t *testing.T) {
	var got captured
	srv := whisperServer(t, 500, `{"error":"boom"}`, &got)

	g := NewGroq("k")
	g.apiURL = srv.URL
	_, err := g.Transcribe(context.Background(), writeAudio(t, "u.wav"))
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("err = %v, want API error with status", err)
	}
}

func TestTranscribeBadJSON(t *testing.T) {
	var got captured
	srv := whisperServer(t, 200, `not json`, &got)

	o := NewOpenAI("k")
	o.apiURL = srv.URL
	if _, err := o.Transcribe(context.Background(), writeAudio(t, "u.wav")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	g := NewGroq("k")
	if _, err := g.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIsNoSpeech(t *testing.T) {
	for _, tt := range []struct {
		name string
		r    Result
		want bool
	}{
		{"empty", Result{Text: "  "}, true},
		{"no segments", Result{Text: "hi"}, false},
		{"speech", Result{Text: "hi", Segments: []Segment{{NoSpeechProb: 0.1}}}, false},
		{"mixed", Result{Text: "hi", Segments: []Segment{{NoSpeechProb: 0.9}, {NoSpeechProb: 0.2}}}, false},
		{"silence", Result{Text: "you", Segments: []Segment{{NoSpeechProb: 0.9}}}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNoSpeech(&tt.r); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWhisperCpp(t *testing.T) {
	w := NewWhisperCpp("whisper-cli", "/models/base.bin", "en")
	var gotName string
	var gotArgs []string
	w.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("\n [BLANK_AUDIO]  hello   there\n"), nil
	}

	text, err := w.Transcribe(context.Background(), "/tmp/u.wav")
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello there" {
		t.Errorf("text = %q", text)
	}
	want := "-m /models/base.bin -f /tmp/u.wav -nt -l en"
	if gotName != "whisper-cli" || strings.Join(gotArgs, " ") != want {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}
}

func TestWhisperCppSilence(t *testing.T) {
	w := NewWhisperCpp("whisper-cli", "m", "")
	w.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("[BLANK_AUDIO]\n"), nil
	}
	text, err := w.Transcribe(context.Background(), "/tmp/u.wav")
	if err != nil || text != "" {
		t.Errorf("got %q, %v", text, err)
	}
}

func TestWhisperCppError(t *testing.T) {
	w := NewWhisperCpp("whisper-cli", "m", "")
	w.run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	if _, err := w.Transcribe(context.Background(), "/tmp/u.wav"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		cfg     Config
		name    string
		wantErr bool
	}{
		{Config{Backend: BackendGroq, GroqAPIKey: "k"}, "groq", false},
		{Config{Backend: BackendOpenAI, OpenAIAPIKey: "k"}, "openai", false},
		{Config{Backend: BackendWhisper, WhisperBin: "w", WhisperModel: "m"}, "whisper", false},
		{Config{Backend: BackendGroq}, "", true},
		{Config{Backend: "deepgram"}, "", true},
	} {
		tr, err := New(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) err = %v", tt.cfg, err)
			continue
		}
		if err == nil && tr.Name() != tt.name {
			t.Errorf("Name = %q, want %q", tr.Name(), tt.name)
		}
	}
}

func TestFake(t *testing.T) {
	f := NewFake("hi", nil)
	if text, err := f.Transcribe(context.Background(), "a.wav"); text != "hi" || err != nil {
		t.Errorf("got %q, %v", text, err)
	}
	if p := f.Paths(); len(p) != 1 || p[0] != "a.wav" {
		t.Errorf("paths = %v", p)
	}
	f = NewFake("", errors.New("down"))
	if _, err := f.Transcribe(context.Background(), "a.wav"); err == nil {
		t.Error("expected error")
	}
}

func TestTracedClientMetrics(t *testing.T) {
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
			return
		}
		io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)

	c := NewTracedClient()
	if _, err := c.WarmConnection(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if n := heads.Load(); n != 1 {
		t.Errorf("HEAD requests = %d", n)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "ok" || resp.StatusCode != http.StatusOK {
		t.Errorf("response = %d %q", resp.StatusCode, resp.Body)
	}
	if !resp.Metrics.ConnReused {
		t.Error("warmed connection was not reused")
	}
	if resp.Metrics.Total <= 0 {
		t.Errorf("total = %v", resp.Metrics.Total)
	}
}

func TestWarmConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := NewTracedClient().WarmConnection(context.Background(), url); err == nil {
		t.Error("expected error from closed server")
	}
}
