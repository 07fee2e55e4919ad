//go:build darwin

package beep

import (
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	cues      struct{ start, end, fail []byte }
	soundOnce sync.Once

	current clip
	playMu  sync.Mutex
)

func openDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			current.fill(out[:frameCount*2])
		},
	})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	set := renderCues(sampleRate, 0)
	cues.start, cues.end, cues.fail = pcmBytes(set.start), pcmBytes(set.end), pcmBytes(set.fail)
	if err := openDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func play(samples *[]byte) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	if malgoCtx == nil || len(*samples) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	current.load(*samples)
	if err := device.Start(); err == nil {
		return
	}
	// the device goes stale across sleep/wake; reopen once
	device.Uninit()
	if err := openDevice(); err != nil || device.Start() != nil {
		current.load(nil)
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() { play(&cues.start) }
func PlayEnd()   { play(&cues.end) }
func PlayError() { play(&cues.fail) }
