//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var xKeys = map[string]hotkey.Key{
	"f1":               hotkey.KeyF1,
	"f2":               hotkey.KeyF2,
	"f3":               hotkey.KeyF3,
	"f4":               hotkey.KeyF4,
	"f5":               hotkey.KeyF5,
	"f6":               hotkey.KeyF6,
	"f7":               hotkey.KeyF7,
	"f8":               hotkey.KeyF8,
	"f9":               hotkey.KeyF9,
	"f10":              hotkey.KeyF10,
	"f11":              hotkey.KeyF11,
	"f12":              hotkey.KeyF12,
	"ctrl+shift+space": hotkey.KeySpace,
}

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// New registers key with the OS hotkey service. Bare modifier keys cannot be
// registered this way and are rejected.
func New(key Key) (Hotkey, error) {
	xk, ok := xKeys[key.Name]
	if !ok {
		return nil, fmt.Errorf("key %q is not supported on this platform (use f1-f12 or ctrl+shift+space)", key.Name)
	}
	var mods []hotkey.Modifier
	if key.needs(ModCtrl) {
		mods = append(mods, hotkey.ModCtrl)
	}
	if key.needs(ModShift) {
		mods = append(mods, hotkey.ModShift)
	}
	return &xHotkey{
		hk:      hotkey.New(mods, xk),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.forward(h.hk.Keydown(), h.keydown)
	go h.forward(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) forward(in <-chan hotkey.Event, out chan struct{}) {
	for {
		select {
		case <-h.stop:
			return
		case <-in:
			select {
			case out <- struct{}{}:
			case <-h.stop:
				return
			}
		}
	}
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose() (string, error) {
	return "hotkey support available (f1-f12, ctrl+shift+space)", nil
}
