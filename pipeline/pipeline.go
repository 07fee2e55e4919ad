package pipeline

import (
	"context"
	"time"

	"dictate/prompt"
)

type State int32

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Reason explains why an utterance ended without delivery.
type Reason string

const (
	ReasonNoAudio          Reason = "no_audio"
	ReasonNoTranscript     Reason = "no_transcript"
	ReasonRecordFailed     Reason = "record_failed"
	ReasonTranscribeFailed Reason = "transcribe_failed"
	ReasonRewriteFailed    Reason = "rewrite_failed"
	ReasonDeliverFailed    Reason = "deliver_failed"
	ReasonShutdown         Reason = "shutdown"
)

// Failed reports whether the reason comes from a collaborator error rather
// than an empty result.
func (r Reason) Failed() bool {
	switch r {
	case ReasonRecordFailed, ReasonTranscribeFailed, ReasonRewriteFailed, ReasonDeliverFailed:
		return true
	}
	return false
}

// Utterance is one release-to-delivery cycle.
type Utterance struct {
	ID            string
	AudioPath     string
	RawTranscript string
	FormattedText string
	Mode          prompt.Mode
	StartedAt     time.Time
}

// Settings is fixed for the lifetime of an Orchestrator.
type Settings struct {
	Mode        prompt.Mode
	AutoPaste   bool
	TempDir     string
	AudioFormat string // "wav" or "flac"
}

// Recorder captures audio between Start and Stop. Stop writes the captured
// audio to dest and reports false when nothing usable was captured.
type Recorder interface {
	Start() error
	Stop(dest string) (bool, error)
}

// Transcriber returns the text spoken in the audio file at path, or "" when
// no speech was detected.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Warmer is an optional Transcriber extension. Warm is called in the
// background on every press so the upload connection is ready by release.
type Warmer interface {
	Warm()
}

type Rewriter interface {
	Rewrite(ctx context.Context, text string, mode prompt.Mode) (string, error)
}

type Deliverer interface {
	Deliver(text string, autoPaste bool) error
}

// Signal delivers key press and release edges from its own detection loop.
// Callbacks must not block the loop for long.
type Signal interface {
	Start(onPress, onRelease func()) error
	Stop()
}

// Observer receives state and outcome events. Calls are made outside the
// orchestrator's lock, from whichever goroutine caused the event.
type Observer interface {
	StateChanged(s State)
	Delivered(u Utterance)
	Abandoned(u Utterance, reason Reason)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)          {}
func (nopObserver) Delivered(Utterance)         {}
func (nopObserver) Abandoned(Utterance, Reason) {}
