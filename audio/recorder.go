package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"dictate/encoder"
	"dictate/log"
)

// MinFrames is the shortest capture worth transcribing (100 ms).
const MinFrames = encoder.SampleRate / 10

var ErrRecording = errors.New("already recording")

// Recorder buffers PCM from a CaptureDevice between Start and Stop.
type Recorder struct {
	dev   CaptureDevice
	tail  time.Duration
	level func(rms float64)

	mu        sync.Mutex
	samples   []int16
	recording bool
	started   time.Time
}

type RecorderOption func(*Recorder)

// WithTail keeps capturing for d after Stop is called so the last syllable
// is not clipped by an early key release.
func WithTail(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.tail = d }
}

// WithLevel reports the RMS level (0..1) of every captured chunk. fn runs on
// the capture goroutine and must not block.
func WithLevel(fn func(rms float64)) RecorderOption {
	return func(r *Recorder) { r.level = fn }
}

func NewRecorder(dev CaptureDevice, opts ...RecorderOption) *Recorder {
	r := &Recorder{dev: dev}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrRecording
	}
	r.recording = true
	r.samples = r.samples[:0]
	r.started = time.Now()
	r.mu.Unlock()

	r.dev.SetCallback(r.onData)
	if err := r.dev.Start(); err != nil {
		r.dev.ClearCallback()
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("start capture on %s: %w", r.dev.DeviceName(), err)
	}
	return nil
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	n := min(int(frameCount), len(data)/2)
	start := len(r.samples)
	for i := 0; i < n; i++ {
		r.samples = append(r.samples, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	var rms float64
	if r.level != nil && n > 0 {
		rms = RMS(r.samples[start:])
	}
	r.mu.Unlock()

	if r.level != nil && n > 0 {
		r.level(rms)
	}
}

// RMS returns the root mean square of samples normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Stop ends capture and writes the audio to dest, choosing the encoding from
// its extension. It reports false, and writes nothing, when less than
// MinFrames were captured or no recording was in progress.
func (r *Recorder) Stop(dest string) (bool, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	if r.tail > 0 {
		time.Sleep(r.tail)
	}
	r.dev.Stop()
	r.dev.ClearCallback()

	r.mu.Lock()
	r.recording = false
	samples := make([]int16, len(r.samples))
	copy(samples, r.samples)
	held := time.Since(r.started)
	r.mu.Unlock()

	if len(samples) < MinFrames {
		log.Debugf("recording too short: %d frames in %s", len(samples), held.Round(time.Millisecond))
		return false, nil
	}

	t := time.Now()
	if err := encoder.WriteFile(dest, samples); err != nil {
		return false, err
	}
	log.Debugf("encoded %.2fs of audio in %s", float64(len(samples))/encoder.SampleRate, time.Since(t).Round(time.Millisecond))
	return true, nil
}

// Frames reports how many frames have been buffered so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}
