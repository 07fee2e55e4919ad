//go:build linux

package clipboard

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestChordOrder(t *testing.T) {
	var buf bytes.Buffer
	var pauses int
	if err := chord(&buf, func(time.Duration) { pauses++ }, keyLeftCtrl, keyV); err != nil {
		t.Fatal(err)
	}

	var events []inputEvent
	for buf.Len() > 0 {
		var ev inputEvent
		if err := binary.Read(&buf, binary.LittleEndian, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type == evKey {
			events = append(events, ev)
		}
	}
	want := []struct {
		code  uint16
		value int32
	}{{keyLeftCtrl, 1}, {keyV, 1}, {keyV, 0}, {keyLeftCtrl, 0}}
	if len(events) != len(want) {
		t.Fatalf("got %d key events, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Code != w.code || events[i].Value != w.value {
			t.Errorf("event %d = %d/%d, want %d/%d", i, events[i].Code, events[i].Value, w.code, w.value)
		}
	}
	if pauses != 3 {
		t.Errorf("pauses = %d, want 3", pauses)
	}
}

func TestKeysSeen(t *testing.T) {
	var buf bytes.Buffer
	chord(&buf, func(time.Duration) {}, keyLeftCtrl, keyV)
	seen := keysSeen(buf.Bytes())
	if !seen[keyLeftCtrl] || !seen[keyV] || len(seen) != 2 {
		t.Errorf("seen = %v", seen)
	}
}

func TestFindEvdev(t *testing.T) {
	sys := t.TempDir()
	for name, dev := range map[string]string{"event3": "AT Keyboard", "event7": pasteDeviceName, "mouse0": pasteDeviceName} {
		dir := filepath.Join(sys, name, "device")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "name"), []byte(dev+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := findEvdev(sys, pasteDeviceName)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/dev/input/event7" {
		t.Errorf("findEvdev = %q", got)
	}
	if _, err := findEvdev(sys, "missing"); err == nil {
		t.Error("expected error for missing device")
	}
}
