package clipboard

import (
	"fmt"
	"time"

	"dictate/log"
)

const (
	pasteSettle  = 50 * time.Millisecond
	restoreDelay = 300 * time.Millisecond
)

// Injector puts text on the clipboard and optionally pastes it into the
// focused window.
type Injector struct {
	copy    func(string) error
	read    func() (string, error)
	paste   func() error
	sleep   func(time.Duration)
	restore bool
}

// NewInjector returns an Injector on the system clipboard. With restore set,
// the previous clipboard text is put back after an auto-paste.
func NewInjector(restore bool) *Injector {
	return &Injector{
		copy:    Copy,
		read:    Read,
		paste:   Paste,
		sleep:   time.Sleep,
		restore: restore,
	}
}

func (i *Injector) Deliver(text string, autoPaste bool) error {
	var prev string
	restore := false
	if i.restore && autoPaste {
		if p, err := i.read(); err == nil {
			prev, restore = p, true
		} else {
			log.Warnf("clipboard read before paste: %v", err)
		}
	}

	if err := i.copy(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	if !autoPaste {
		log.Info("copied to clipboard")
		return nil
	}

	i.sleep(pasteSettle)
	if err := i.paste(); err != nil {
		return fmt.Errorf("paste keystroke (text is still on the clipboard): %w", err)
	}
	log.Info("pasted into focused window")

	if restore {
		i.sleep(restoreDelay)
		if err := i.copy(prev); err != nil {
			log.Warnf("clipboard restore: %v", err)
		}
	}
	return nil
}
