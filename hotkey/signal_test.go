package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type edgeLog struct {
	mu     sync.Mutex
	events []string
}

func (l *edgeLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, s)
}

func (l *edgeLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestSignalOrdersEdges(t *testing.T) {
	fk := NewFake()
	sig := NewSignal(fk)
	var l edgeLog
	if err := sig.Start(func() { l.add("down") }, func() { l.add("up") }); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		fk.SimKeydown()
		fk.SimKeyup()
	}
	sig.Stop()

	got := l.snapshot()
	want := []string{"down", "up", "down", "up", "down", "up"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSignalStopIdempotent(t *testing.T) {
	sig := NewSignal(NewFake())
	if err := sig.Start(func() {}, func() {}); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		sig.Stop()
		sig.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}

func TestSignalStopBeforeStart(t *testing.T) {
	sig := NewSignal(NewFake())
	sig.Stop()
}

func TestSignalStartTwice(t *testing.T) {
	sig := NewSignal(NewFake())
	defer sig.Stop()
	if err := sig.Start(func() {}, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := sig.Start(func() {}, func() {}); err == nil {
		t.Fatal("expected error on second Start")
	}
}

type failingHotkey struct{ *FakeHotkey }

func (failingHotkey) Register() error { return errors.New("no keyboard devices found") }

func TestSignalRegisterError(t *testing.T) {
	sig := NewSignal(failingHotkey{NewFake()})
	if err := sig.Start(func() {}, func() {}); err == nil {
		t.Fatal("expected register error")
	}
	sig.Stop()
}

func TestFakeSimAfterUnregister(t *testing.T) {
	fk := NewFake()
	fk.Unregister()
	done := make(chan struct{})
	go func() {
		fk.SimKeydown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SimKeydown blocked after Unregister")
	}
}
