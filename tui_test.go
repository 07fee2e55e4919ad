package main

import (
	"strings"
	"testing"

	"dictate/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m tuiModel, msg tea.Msg) tuiModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(tuiModel)
}

func TestTUIStateTransitions(t *testing.T) {
	m := tuiModel{info: tuiInfo{Mode: "email", Key: "f9", Provider: "groq", Device: "default"}}
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m = update(t, m, stateMsg{State: pipeline.Recording})
	m = update(t, m, levelMsg{Level: 0.5})
	if m.state != pipeline.Recording || m.peakLevel != 0.5 || m.audioLevel == 0 {
		t.Fatalf("recording model = %+v", m)
	}
	if !strings.Contains(m.View(), "REC") {
		t.Error("recording view missing REC")
	}

	m = update(t, m, stateMsg{State: pipeline.Processing})
	if m.audioLevel != 0 {
		t.Error("level not reset after recording")
	}
	m = update(t, m, levelMsg{Level: 0.9})
	if m.audioLevel != 0 {
		t.Error("level updated while processing")
	}
	if !strings.Contains(m.View(), "PROCESSING") {
		t.Error("processing view missing PROCESSING")
	}

	m = update(t, m, deliveredMsg{Raw: "hi there", Formatted: "Hi there."})
	m = update(t, m, stateMsg{State: pipeline.Idle})
	view := m.View()
	for _, want := range []string{"STANDBY", "Hi there.", "heard: hi there", "Last delivery (#1)", "email"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTUIAbandoned(t *testing.T) {
	m := tuiModel{}
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = update(t, m, abandonedMsg{Reason: pipeline.ReasonNoTranscript})
	if !strings.Contains(m.View(), "no speech detected") {
		t.Error("view missing abandon reason")
	}
	m = update(t, m, stateMsg{State: pipeline.Recording})
	if m.lastReason != "" {
		t.Error("reason not cleared on new recording")
	}
}

func TestTUIQuitKey(t *testing.T) {
	_, cmd := tuiModel{}.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestTUILoading(t *testing.T) {
	if got := (tuiModel{}).View(); got != "Loading..." {
		t.Errorf("View = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps" {
		t.Errorf("lines = %q", lines)
	}
}

func TestReasonText(t *testing.T) {
	if got := reasonText(pipeline.ReasonTranscribeFailed); got != "transcribe failed" {
		t.Errorf("got %q", got)
	}
	if got := reasonText(pipeline.ReasonNoAudio); got != "too short" {
		t.Errorf("got %q", got)
	}
}
