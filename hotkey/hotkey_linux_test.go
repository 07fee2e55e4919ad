//go:build linux

package hotkey

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestEdgeDetectorSingleKey(t *testing.T) {
	k, _ := ParseKey("right_alt")
	d := edgeDetector{key: k}

	steps := []struct {
		code  uint16
		value int32
		want  edge
	}{
		{100, keyPress, edgeDown},
		{100, 2, edgeNone}, // autorepeat
		{100, keyPress, edgeNone},
		{30, keyPress, edgeNone},
		{100, keyRelease, edgeUp},
		{100, keyRelease, edgeNone},
	}
	for i, s := range steps {
		if got := d.feed(s.code, s.value); got != s.want {
			t.Errorf("step %d: got %v, want %v", i, got, s.want)
		}
	}
}

func TestEdgeDetectorChord(t *testing.T) {
	k, _ := ParseKey("ctrl+shift+space")
	d := edgeDetector{key: k}

	if d.feed(57, keyPress) != edgeNone {
		t.Fatal("space alone should not fire")
	}
	d.feed(57, keyRelease)

	d.feed(keyLCtrl, keyPress)
	if d.feed(57, keyPress) != edgeNone {
		t.Fatal("ctrl+space should not fire")
	}
	d.feed(57, keyRelease)

	d.feed(keyRShift, keyPress)
	if d.feed(57, keyPress) != edgeDown {
		t.Fatal("ctrl+shift+space should fire")
	}
	// releasing a modifier first still ends the press on space release
	d.feed(keyLCtrl, keyRelease)
	if d.feed(57, keyRelease) != edgeUp {
		t.Fatal("space release should end the press")
	}
}

func TestEdgeDetectorRightCtrlTrigger(t *testing.T) {
	k, _ := ParseKey("right_ctrl")
	d := edgeDetector{key: k}
	if d.feed(keyRCtrl, keyPress) != edgeDown {
		t.Fatal("right ctrl should fire")
	}
	if d.feed(keyRCtrl, keyRelease) != edgeUp {
		t.Fatal("right ctrl release should fire")
	}
}

func TestKeyEvents(t *testing.T) {
	buf := make([]byte, inputEventSize*3)
	put := func(i int, typ, code uint16, value int32) {
		binary.LittleEndian.PutUint16(buf[i*inputEventSize+16:], typ)
		binary.LittleEndian.PutUint16(buf[i*inputEventSize+18:], code)
		binary.LittleEndian.PutUint32(buf[i*inputEventSize+20:], uint32(value))
	}
	put(0, evKey, 100, keyPress)
	put(1, 0, 0, 0) // SYN_REPORT
	put(2, evKey, 100, keyRelease)

	var got []int32
	keyEvents(append(buf, 1, 2, 3), func(code uint16, value int32) {
		if code != 100 {
			t.Errorf("code = %d", code)
		}
		got = append(got, value)
	})
	if len(got) != 2 || got[0] != keyPress || got[1] != keyRelease {
		t.Errorf("values = %v", got)
	}
}

func TestFindKeyboards(t *testing.T) {
	dev, sys := t.TempDir(), t.TempDir()
	caps := map[string]string{
		"event0": "3 0 0 0 0 0 0 2000000 3803078f800d001 feffffdfffefffff fffffffffffffffe",
		"event1": "4000 0 0",
		"mouse0": "3 0 0 0 0 0 0 2000000 3803078f800d001 feffffdfffefffff fffffffffffffffe",
	}
	for name, c := range caps {
		if err := os.WriteFile(filepath.Join(dev, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		dir := filepath.Join(sys, name, "device", "capabilities")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "key"), []byte(c+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dev, "event2"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := findKeyboards(dev, sys)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != filepath.Join(dev, "event0") {
		t.Errorf("keyboards = %v", got)
	}
}
