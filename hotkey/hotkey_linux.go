//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
)

const inputEventSize = 24

const (
	devInputDir = "/dev/input"
	sysInputDir = "/sys/class/input"
)

type linuxHotkey struct {
	key     Key
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

// New reads key edges straight from /dev/input, so it works under X11 and
// Wayland alike. The user must be able to read the event devices.
func New(key Key) (Hotkey, error) {
	return &linuxHotkey{
		key:     key,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards(devInputDir, sysInputDir)
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var d edgeDetector
	d.key = h.key

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}
		keyEvents(buf[:n], func(code uint16, value int32) {
			switch d.feed(code, value) {
			case edgeDown:
				notify(h.keydown)
			case edgeUp:
				notify(h.keyup)
			}
		})
	}
}

// keyEvents calls fn for every EV_KEY record in a raw input_event buffer.
func keyEvents(buf []byte, fn func(code uint16, value int32)) {
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		fn(binary.LittleEndian.Uint16(buf[i+18:]), int32(binary.LittleEndian.Uint32(buf[i+20:])))
	}
}

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

// edgeDetector turns raw key events from one device into press and release
// edges of the configured key. Autorepeat events (value 2) are ignored.
type edgeDetector struct {
	key               Key
	ctrl, shift, held bool
}

func (d *edgeDetector) feed(code uint16, value int32) edge {
	pressed := value == keyPress
	released := value == keyRelease

	if code == d.key.Code {
		switch {
		case pressed && !d.held && d.modsHeld():
			d.held = true
			return edgeDown
		case released && d.held:
			d.held = false
			return edgeUp
		}
		return edgeNone
	}

	switch code {
	case keyLCtrl, keyRCtrl:
		d.ctrl = pressed || (!released && d.ctrl)
	case keyLShift, keyRShift:
		d.shift = pressed || (!released && d.shift)
	}
	return edgeNone
}

func (d *edgeDetector) modsHeld() bool {
	if d.key.needs(ModCtrl) && !d.ctrl {
		return false
	}
	if d.key.needs(ModShift) && !d.shift {
		return false
	}
	return true
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *linuxHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

// findKeyboards lists event nodes in devDir whose key capability bitmap in
// sysDir is wide enough to be a keyboard rather than a power button or
// mouse.
func findKeyboards(devDir, sysDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}
	var keyboards []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") && isKeyboard(sysDir, e.Name()) {
			keyboards = append(keyboards, filepath.Join(devDir, e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(sysDir, eventName string) bool {
	data, err := os.ReadFile(filepath.Join(sysDir, eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose reports whether any keyboard event device can be opened.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards(devInputDir, sysInputDir)
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
