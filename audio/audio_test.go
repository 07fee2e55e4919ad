package audio

import (
	"encoding/binary"
	"testing"
)

func TestAmplifyClips(t *testing.T) {
	tests := []struct {
		in   int16
		gain int
		want int16
	}{
		{100, 0, 100},
		{100, 1, 100},
		{100, 8, 800},
		{10000, 8, 32767},
		{-10000, 8, -32768},
	}
	for _, tt := range tests {
		if got := amplify(tt.in, tt.gain); got != tt.want {
			t.Errorf("amplify(%d, %d) = %d, want %d", tt.in, tt.gain, got, tt.want)
		}
	}
}

func TestEncodeAndApplyGain(t *testing.T) {
	data := encodePCM([]int16{1, -2, 5000}, 8)
	want := []int16{8, -16, 32767}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(data[i*2:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}

	raw := encodePCM([]int16{3, -4}, 1)
	applyGain(raw, 2)
	if got := int16(binary.LittleEndian.Uint16(raw[2:])); got != -8 {
		t.Errorf("applyGain sample = %d, want -8", got)
	}
}

func TestDeviceName(t *testing.T) {
	if got := deviceName(nil); got != "system default" {
		t.Errorf("deviceName(nil) = %q", got)
	}
	if got := deviceName(&DeviceInfo{Name: "USB"}); got != "USB" {
		t.Errorf("deviceName = %q", got)
	}
}
