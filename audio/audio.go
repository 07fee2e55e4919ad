// Package audio captures 16-bit PCM from a microphone.
package audio

import (
	"encoding/binary"
	"errors"
)

// DefaultGain is applied to pulse capture, whose sources are often quiet.
const DefaultGain = 8

const defaultDeviceName = "system default"

var ErrNoDevices = errors.New("no capture devices found")

// DataCallback receives little-endian 16-bit PCM from the capture thread.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	Gain       int // linear multiplier; 0 or 1 leaves samples untouched
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice delivers PCM to the installed callback between Start and
// Stop. Callbacks may be swapped while capturing.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

func deviceName(d *DeviceInfo) string {
	if d != nil {
		return d.Name
	}
	return defaultDeviceName
}

// encodePCM converts samples to little-endian bytes, multiplying by gain and
// clipping at the int16 range.
func encodePCM(samples []int16, gain int) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(amplify(s, gain)))
	}
	return data
}

// applyGain amplifies little-endian PCM in place.
func applyGain(data []byte, gain int) {
	if gain <= 1 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i:]))
		binary.LittleEndian.PutUint16(data[i:], uint16(amplify(s, gain)))
	}
}

func amplify(s int16, gain int) int16 {
	if gain <= 1 {
		return s
	}
	v := int32(s) * int32(gain)
	return int16(max(min(v, 32767), -32768))
}
