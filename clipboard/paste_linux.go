//go:build linux

package clipboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// linux/uinput.h
const (
	uiSetEvbit  = 0x40045564
	uiSetKeybit = 0x40045565
	uiDevCreate = 0x5501
)

// linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01

	busUSB = 0x03

	keyLeftCtrl = 29
	keyV        = 47
)

const (
	pasteDeviceName = "dictate-paste"
	sysInputDir     = "/sys/class/input"

	// inputEventSize is sizeof(struct input_event) on 64-bit kernels.
	inputEventSize = 24

	// modifierSettle lets the compositor see each key state change.
	modifierSettle = 5 * time.Millisecond
)

var uinputPaths = []string{"/dev/uinput", "/dev/input/uinput"}

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

var (
	keyboard     *os.File
	keyboardOnce sync.Once
	keyboardErr  error
)

func ioctl(f *os.File, req, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), req, arg); errno != 0 {
		return errno
	}
	return nil
}

// createKeyboard registers a virtual keyboard with every standard key so
// udev classifies it as a keyboard rather than a bare button device.
func createKeyboard(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, err
	}
	setup := func() error {
		if err := ioctl(f, uiSetEvbit, evKey); err != nil {
			return fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err)
		}
		if err := ioctl(f, uiSetEvbit, evSyn); err != nil {
			return fmt.Errorf("UI_SET_EVBIT EV_SYN: %w", err)
		}
		for key := uintptr(0); key < 256; key++ {
			if err := ioctl(f, uiSetKeybit, key); err != nil {
				return fmt.Errorf("UI_SET_KEYBIT %d: %w", key, err)
			}
		}
		dev := uinputUserDev{ID: inputID{Bustype: busUSB, Vendor: 0x1234, Product: 0x5678, Version: 1}}
		copy(dev.Name[:], pasteDeviceName)
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			return err
		}
		return ioctl(f, uiDevCreate, 0)
	}
	if err := setup(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Init creates the virtual paste keyboard once per process.
func Init() error {
	keyboardOnce.Do(func() {
		path := ""
		for _, p := range uinputPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			keyboardErr = errors.New("uinput device not found, try: sudo modprobe uinput")
			return
		}
		keyboard, keyboardErr = createKeyboard(path)
		if keyboardErr == nil {
			// the compositor needs a moment to pick up a new input device
			time.Sleep(200 * time.Millisecond)
		}
	})
	return keyboardErr
}

// chord presses keys in order and releases them in reverse, each followed by
// a SYN_REPORT.
func chord(w io.Writer, pause func(time.Duration), keys ...uint16) error {
	emit := func(code uint16, value int32) error {
		if err := binary.Write(w, binary.LittleEndian, &inputEvent{Type: evKey, Code: code, Value: value}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, &inputEvent{Type: evSyn})
	}
	for _, k := range keys {
		if err := emit(k, 1); err != nil {
			return err
		}
		pause(modifierSettle)
	}
	for i := len(keys) - 1; i >= 0; i-- {
		if err := emit(keys[i], 0); err != nil {
			return err
		}
		if i > 0 {
			pause(modifierSettle)
		}
	}
	return nil
}

// Paste sends Ctrl+V through the virtual uinput keyboard, which works on both
// X11 and Wayland.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	return chord(keyboard, time.Sleep, keyLeftCtrl, keyV)
}

// findEvdev returns the /dev/input node of the input device called name.
func findEvdev(sysDir, name string) (string, error) {
	entries, err := os.ReadDir(sysDir)
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sysDir, e.Name(), "device", "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == name {
			return filepath.Join("/dev/input", e.Name()), nil
		}
	}
	return "", fmt.Errorf("evdev device %q not found", name)
}

// keysSeen lists the key codes present in a buffer of raw input events.
func keysSeen(buf []byte) map[uint16]bool {
	seen := map[uint16]bool{}
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) == evKey {
			seen[binary.LittleEndian.Uint16(buf[i+18:])] = true
		}
	}
	return seen
}

// Verify sends Ctrl+V and reads it back from the kernel input layer.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}
	evdevPath, err := findEvdev(sysInputDir, pasteDeviceName)
	if err != nil {
		return "", err
	}
	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := Paste(); err != nil {
		return "", fmt.Errorf("paste send: %w", err)
	}

	type result struct {
		seen map[uint16]bool
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, inputEventSize*32)
		n, err := evdev.Read(buf)
		ch <- result{seen: keysSeen(buf[:max(n, 0)]), err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading events: %w", r.err)
		}
		if !r.seen[keyLeftCtrl] || !r.seen[keyV] {
			return "", fmt.Errorf("missing events (ctrl=%v, v=%v)", r.seen[keyLeftCtrl], r.seen[keyV])
		}
		return "Ctrl+V keystroke verified via " + evdevPath, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}
