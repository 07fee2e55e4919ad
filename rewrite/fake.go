package rewrite

import (
	"context"
	"sync"

	"dictate/prompt"
)

// Fake returns a fixed text, or the input unchanged when Text is empty.
type Fake struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls []prompt.Mode
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Rewrite(_ context.Context, text string, mode prompt.Mode) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, mode)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	if f.Text != "" {
		return f.Text, nil
	}
	return text, nil
}

func (f *Fake) Calls() []prompt.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]prompt.Mode(nil), f.calls...)
}
