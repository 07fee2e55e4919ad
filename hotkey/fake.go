package hotkey

import "sync"

// FakeHotkey is driven by SimKeydown and SimKeyup. The channels are
// unbuffered so simulated edges are consumed in the order they are sent.
type FakeHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}),
		keyup:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (f *FakeHotkey) Register() error { return nil }

func (f *FakeHotkey) Unregister() {
	f.once.Do(func() { close(f.done) })
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

// SimKeydown blocks until the edge is received or the fake is unregistered.
func (f *FakeHotkey) SimKeydown() { f.send(f.keydown) }
func (f *FakeHotkey) SimKeyup()   { f.send(f.keyup) }

func (f *FakeHotkey) send(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	case <-f.done:
	}
}
