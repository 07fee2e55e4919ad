package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dictate/prompt"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, status int, content string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			io.WriteString(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   got.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{APIKey: "sk-test", BaseURL: url, Model: "gpt-4o-mini", Temperature: 0.3, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRewriteSendsPrompts(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, http.StatusOK, "  Hi Sam,\n\nPlease send the report.  ", &got)

	out, err := newClient(t, srv.URL).Rewrite(context.Background(), "um hi sam send the report", prompt.ModeEmail)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hi Sam,\n\nPlease send the report." {
		t.Errorf("out = %q", out)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Content != prompt.SystemPrompt {
		t.Error("system prompt not sent")
	}
	want, _ := prompt.BuildInstruction(prompt.ModeEmail, "um hi sam send the report")
	if got.Messages[1].Content != want {
		t.Errorf("user message = %q", got.Messages[1].Content)
	}
}

func TestRewriteModeChangesInstruction(t *testing.T) {
	var email, msg chatRequest
	c1 := newClient(t, chatServer(t, http.StatusOK, "x", &email).URL)
	c2 := newClient(t, chatServer(t, http.StatusOK, "x", &msg).URL)
	c1.Rewrite(context.Background(), "hello", prompt.ModeEmail)
	c2.Rewrite(context.Background(), "hello", prompt.ModeMessage)
	if email.Messages[1].Content == msg.Messages[1].Content {
		t.Error("email and message requests should differ")
	}
}

func TestRewriteEmptyCompletionFallsBack(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, http.StatusOK, "   ", &got)

	out, err := newClient(t, srv.URL).Rewrite(context.Background(), "raw words", prompt.ModeMessage)
	if err != nil {
		t.Fatal(err)
	}
	if out != "raw words" {
		t.Errorf("out = %q, want raw transcript", out)
	}
}

func TestRewriteServerError(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, http.StatusInternalServerError, "", &got)

	_, err := newClient(t, srv.URL).Rewrite(context.Background(), "raw", prompt.ModeMessage)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "gpt-4o-mini") {
		t.Errorf("err = %v", err)
	}
}

func TestRewriteInvalidMode(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1")
	if _, err := c.Rewrite(context.Background(), "raw", prompt.Mode("fax")); !errors.Is(err, prompt.ErrInvalidMode) {
		t.Errorf("err = %v", err)
	}
}

func TestRewriteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "m", Timeout: 50 * time.Millisecond})
	start := time.Now()
	if _, err := c.Rewrite(context.Background(), "raw", prompt.ModeMessage); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFake(t *testing.T) {
	f := NewFake("", nil)
	if out, _ := f.Rewrite(context.Background(), "same", prompt.ModeEmail); out != "same" {
		t.Errorf("out = %q", out)
	}
	f = NewFake("fixed", nil)
	if out, _ := f.Rewrite(context.Background(), "x", prompt.ModeMessage); out != "fixed" {
		t.Errorf("out = %q", out)
	}
	if c := f.Calls(); len(c) != 1 || c[0] != prompt.ModeMessage {
		t.Errorf("calls = %v", c)
	}
}
