package encoder

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavHeaderSize = 44

const wavFormatPCM = 1

// WavEncoder writes 16-bit PCM through go-audio/wav into memory.
type WavEncoder struct {
	mu          sync.Mutex
	buf         seekBuffer
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
	closed      bool
}

func NewWav() *WavEncoder {
	e := &WavEncoder{format: &audio.Format{NumChannels: Channels, SampleRate: SampleRate}}
	e.enc = wav.NewEncoder(&e.buf, SampleRate, BitsPerSample, Channels, wavFormatPCM)
	return e
}

func (e *WavEncoder) write(block []int16) error {
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	return e.enc.Write(&audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample})
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	if err := e.write(block); err != nil {
		return err
	}
	e.totalFrames += uint64(len(block))
	return nil
}

// Close patches the RIFF and data sizes into the header.
func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.totalFrames == 0 {
		// the header is only written with the first block
		if err := e.write(nil); err != nil {
			return err
		}
	}
	return e.enc.Close()
}

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		return nil
	}
	return e.buf.data
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

// seekBuffer is an in-memory io.WriteSeeker.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

// PCMFromWAV returns the sample bytes of a RIFF/WAVE file by walking its
// chunks to "data". Input that is not RIFF is returned after a fixed
// 44-byte header, or empty when shorter.
func PCMFromWAV(data []byte) []byte {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		pos := 12
		for pos+8 <= len(data) {
			id := string(data[pos : pos+4])
			size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
			body := pos + 8
			if id == "data" {
				return data[body:min(body+size, len(data))]
			}
			pos = body + size + size%2
		}
	}
	if len(data) <= wavHeaderSize {
		return nil
	}
	return data[wavHeaderSize:]
}

// Samples converts little-endian 16-bit PCM bytes to samples.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
