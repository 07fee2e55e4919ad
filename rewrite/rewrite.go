package rewrite

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"dictate/log"
	"dictate/prompt"
)

type Config struct {
	APIKey string
	// BaseURL selects an OpenAI-compatible server. Empty means api.openai.com.
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client rewrites transcripts with a chat completion model.
type Client struct {
	client  *openai.Client
	model   string
	temp    float32
	timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("rewrite: model is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		temp:    cfg.Temperature,
		timeout: cfg.Timeout,
	}, nil
}

// Rewrite returns text cleaned up for mode. A completion with no content
// falls back to the raw text so the utterance is still delivered.
func (c *Client) Rewrite(ctx context.Context, text string, mode prompt.Mode) (string, error) {
	instruction, err := prompt.BuildInstruction(mode, text)
	if err != nil {
		return "", err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: instruction},
		},
	})
	if err != nil {
		return "", fmt.Errorf("rewrite %s: %w", c.model, err)
	}
	log.Debugf("rewrite: model=%s tokens=%d in %s", c.model, resp.Usage.TotalTokens, time.Since(start).Round(time.Millisecond))

	if len(resp.Choices) == 0 {
		log.Warn("rewrite: no choices returned, using raw transcript")
		return text, nil
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		log.Warn("rewrite: empty completion, using raw transcript")
		return text, nil
	}
	return out, nil
}
