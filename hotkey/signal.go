package hotkey

import (
	"fmt"
	"sync"
)

// Signal turns a Hotkey's edge channels into press and release callbacks,
// called in order from a single detection goroutine.
type Signal struct {
	hk      Hotkey
	stop    chan struct{}
	done    chan struct{}
	started bool
	mu      sync.Mutex
	once    sync.Once
}

func NewSignal(hk Hotkey) *Signal {
	return &Signal{
		hk:   hk,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *Signal) Start(onPress, onRelease func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("hotkey signal already started")
	}
	if err := s.hk.Register(); err != nil {
		return fmt.Errorf("register hotkey: %w", err)
	}
	s.started = true
	go s.loop(onPress, onRelease)
	return nil
}

func (s *Signal) loop(onPress, onRelease func()) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.hk.Keydown():
			onPress()
		case <-s.hk.Keyup():
			onRelease()
		}
	}
}

// Stop unregisters the hotkey and waits for the detection goroutine to
// exit. Later calls do nothing.
func (s *Signal) Stop() {
	s.once.Do(func() {
		close(s.stop)
		s.hk.Unregister()
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
	})
}
