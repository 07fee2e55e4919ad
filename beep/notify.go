package beep

import (
	"dictate/log"
	"dictate/pipeline"

	"github.com/gen2brain/beeep"
)

const notifyTitle = "dictate"

// Notifier raises a desktop notification when an utterance fails.
type Notifier struct {
	send func(title, message string) error
}

func NewNotifier() *Notifier {
	return &Notifier{send: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

func (n *Notifier) StateChanged(pipeline.State) {}

func (n *Notifier) Delivered(pipeline.Utterance) {}

func (n *Notifier) Abandoned(_ pipeline.Utterance, reason pipeline.Reason) {
	if !reason.Failed() {
		return
	}
	// The notification daemon can be slow; never hold up the pipeline.
	go func() {
		if err := n.send(notifyTitle, failureText(reason)); err != nil {
			log.Warnf("desktop notification failed: %v", err)
		}
	}()
}

func failureText(r pipeline.Reason) string {
	switch r {
	case pipeline.ReasonRecordFailed:
		return "Recording failed"
	case pipeline.ReasonTranscribeFailed:
		return "Transcription failed"
	case pipeline.ReasonRewriteFailed:
		return "Rewrite failed"
	case pipeline.ReasonDeliverFailed:
		return "Could not deliver text"
	default:
		return "Dictation failed: " + string(r)
	}
}
