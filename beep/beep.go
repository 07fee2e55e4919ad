package beep

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"dictate/pipeline"
)

var disabled atomic.Bool

// Disable silences every cue for the rest of the process.
func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	// start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// end: medium pitch, slower decay
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// error: low pitch double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// tick renders a mono decaying sine.
func tick(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(rate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(rate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(rate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

// cueSet holds the rendered start, end and error sounds.
type cueSet struct {
	start, end, fail []int16
}

// renderCues renders the three cues. tail pads the single ticks so that
// buffered backends have audio to drain.
func renderCues(rate int, tail float64) cueSet {
	return cueSet{
		start: tick(rate, startFreq, max(0.03, tail), startVolume, startDecay),
		end:   tick(rate, endFreq, max(0.05, tail), endVolume, endDecay),
		fail:  doubleBeep(rate, errorFreq, 0.08, 0.05, errorVolume, errorDecay),
	}
}

func pcmBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// clip feeds one cue to a pull-based playback callback.
type clip struct {
	mu   sync.Mutex
	data []byte
	pos  int
}

func (c *clip) load(data []byte) {
	c.mu.Lock()
	c.data, c.pos = data, 0
	c.mu.Unlock()
}

// fill copies the next chunk into out, zero-filling past the end, and
// reports how many bytes of the cue were written.
func (c *clip) fill(out []byte) int {
	c.mu.Lock()
	n := copy(out, c.data[c.pos:])
	c.pos += n
	if c.pos >= len(c.data) {
		c.data, c.pos = nil, 0
	}
	c.mu.Unlock()
	clear(out[n:])
	return n
}

// Cues plays a sound when recording starts, when it stops and when an
// utterance fails.
type Cues struct {
	start, end, fail func()
}

func NewCues() *Cues {
	return &Cues{start: PlayStart, end: PlayEnd, fail: PlayError}
}

func (c *Cues) StateChanged(s pipeline.State) {
	switch s {
	case pipeline.Recording:
		c.start()
	case pipeline.Processing:
		c.end()
	}
}

func (c *Cues) Delivered(pipeline.Utterance) {}

func (c *Cues) Abandoned(_ pipeline.Utterance, reason pipeline.Reason) {
	if reason.Failed() {
		c.fail()
	}
}
