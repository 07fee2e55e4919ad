package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dictate/log"

	"github.com/google/uuid"
)

var ErrStopped = errors.New("orchestrator stopped")

const defaultShutdownGrace = 5 * time.Second

type Option func(*Orchestrator)

// WithObserver sets the sink for state and outcome events.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithShutdownGrace bounds how long shutdown waits for an in-flight
// utterance to reach its next stage boundary.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Orchestrator) { o.grace = d }
}

type Orchestrator struct {
	settings Settings
	rec      Recorder
	trans    Transcriber
	rw       Rewriter
	dl       Deliverer
	sig      Signal
	obs      Observer
	grace    time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	stopped bool
	running bool
	active  int
	base    context.Context

	// Observer calls queued under mu, in transition order.
	events   []func()
	flushing bool

	done         chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
}

func New(settings Settings, rec Recorder, trans Transcriber, rw Rewriter, dl Deliverer, sig Signal, opts ...Option) (*Orchestrator, error) {
	if !settings.Mode.Valid() {
		return nil, fmt.Errorf("pipeline: mode %q is not supported", settings.Mode)
	}
	if rec == nil || trans == nil || rw == nil || dl == nil || sig == nil {
		return nil, errors.New("pipeline: all collaborators are required")
	}
	if settings.TempDir == "" {
		settings.TempDir = os.TempDir()
	}
	switch settings.AudioFormat {
	case "":
		settings.AudioFormat = "wav"
	case "wav", "flac":
	default:
		return nil, fmt.Errorf("pipeline: audio format %q is not supported", settings.AudioFormat)
	}

	o := &Orchestrator{
		settings: settings,
		rec:      rec,
		trans:    trans,
		rw:       rw,
		dl:       dl,
		sig:      sig,
		obs:      nopObserver{},
		grace:    defaultShutdownGrace,
		base:     context.Background(),
		done:     make(chan struct{}),
	}
	o.cond = sync.NewCond(&o.mu)
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run registers with the signal and blocks until Stop is called or ctx is
// done. It returns an error only if the signal could not be started.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.stopped || o.running {
		o.mu.Unlock()
		return ErrStopped
	}
	o.running = true
	// Stages run to completion once started, even if ctx is cancelled.
	o.base = context.WithoutCancel(ctx)
	o.mu.Unlock()

	if err := o.sig.Start(o.onPress, o.onRelease); err != nil {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()
		return fmt.Errorf("start signal: %w", err)
	}
	log.Infof("pipeline ready: mode=%s auto_paste=%v", o.settings.Mode, o.settings.AutoPaste)

	select {
	case <-ctx.Done():
	case <-o.done:
	}
	o.shutdown()
	return nil
}

// Stop triggers shutdown. Safe to call more than once and from any goroutine.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.done) })
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Wait blocks until no utterance is being processed and every observer
// event has been delivered.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	for o.active > 0 || o.flushing || len(o.events) > 0 {
		o.cond.Wait()
	}
	o.mu.Unlock()
}

func (o *Orchestrator) onPress() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		log.Debugf("press ignored: shutting down")
		return
	}
	if o.state != Idle {
		s := o.state
		o.mu.Unlock()
		log.Infof("press ignored: %s", s)
		return
	}
	if err := safeCall(o.rec.Start); err != nil {
		u := Utterance{ID: uuid.NewString(), Mode: o.settings.Mode, StartedAt: time.Now()}
		o.emit(func() { o.obs.Abandoned(u, ReasonRecordFailed) })
		o.mu.Unlock()
		log.Abandoned(u.ID, string(ReasonRecordFailed), err)
		o.flush()
		return
	}
	o.state = Recording
	o.emit(func() { o.obs.StateChanged(Recording) })
	o.mu.Unlock()

	if w, ok := o.trans.(Warmer); ok {
		go w.Warm()
	}
	o.flush()
}

func (o *Orchestrator) onRelease() {
	o.mu.Lock()
	if o.stopped || o.state != Recording {
		o.mu.Unlock()
		return
	}
	o.state = Processing
	o.active++
	id := uuid.NewString()
	u := Utterance{
		ID:        id,
		AudioPath: filepath.Join(o.settings.TempDir, "dictate-"+id+"."+o.settings.AudioFormat),
		Mode:      o.settings.Mode,
		StartedAt: time.Now(),
	}
	o.emit(func() { o.obs.StateChanged(Processing) })
	o.mu.Unlock()

	go o.process(u)
	o.flush()
}

func (o *Orchestrator) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

func (o *Orchestrator) process(u Utterance) {
	reason, err := o.runStages(&u)
	removeAudio(u.AudioPath)
	o.finish(u, reason, err)
}

// runStages returns an empty reason when the utterance was delivered.
func (o *Orchestrator) runStages(u *Utterance) (Reason, error) {
	ctx := o.base

	t := time.Now()
	var ok bool
	err := safeCall(func() error {
		var err error
		ok, err = o.rec.Stop(u.AudioPath)
		return err
	})
	if err != nil {
		return ReasonRecordFailed, err
	}
	if !ok {
		return ReasonNoAudio, nil
	}
	log.Stage(u.ID, "record", time.Since(t))

	if o.isStopped() {
		return ReasonShutdown, nil
	}
	t = time.Now()
	err = safeCall(func() error {
		var err error
		u.RawTranscript, err = o.trans.Transcribe(ctx, u.AudioPath)
		return err
	})
	removeAudio(u.AudioPath)
	if err != nil {
		return ReasonTranscribeFailed, err
	}
	u.RawTranscript = strings.TrimSpace(u.RawTranscript)
	if u.RawTranscript == "" {
		return ReasonNoTranscript, nil
	}
	log.Stage(u.ID, "transcribe", time.Since(t))
	log.Infof("raw: %s", log.Preview(u.RawTranscript, 100))

	if o.isStopped() {
		return ReasonShutdown, nil
	}
	t = time.Now()
	err = safeCall(func() error {
		var err error
		u.FormattedText, err = o.rw.Rewrite(ctx, u.RawTranscript, u.Mode)
		return err
	})
	if err != nil {
		return ReasonRewriteFailed, err
	}
	log.Stage(u.ID, "rewrite", time.Since(t))
	log.Infof("formatted: %s", log.Preview(u.FormattedText, 100))

	if o.isStopped() {
		return ReasonShutdown, nil
	}
	t = time.Now()
	if err := safeCall(func() error { return o.dl.Deliver(u.FormattedText, o.settings.AutoPaste) }); err != nil {
		return ReasonDeliverFailed, err
	}
	log.Stage(u.ID, "deliver", time.Since(t))
	return "", nil
}

// finish reports the outcome and returns to Idle. Wait is released once
// both events have reached the observer.
func (o *Orchestrator) finish(u Utterance, reason Reason, err error) {
	if reason == "" {
		log.Delivered(u.ID, string(u.Mode), o.settings.AutoPaste, time.Since(u.StartedAt))
		log.TranscriptionText(u.RawTranscript, u.FormattedText)
	} else {
		log.Abandoned(u.ID, string(reason), err)
	}

	o.mu.Lock()
	if reason == "" {
		o.emit(func() { o.obs.Delivered(u) })
	} else {
		o.emit(func() { o.obs.Abandoned(u, reason) })
	}
	o.state = Idle
	o.emit(func() { o.obs.StateChanged(Idle) })
	o.active--
	o.mu.Unlock()
	o.flush()
}

// emit queues an observer call. Callers hold o.mu.
func (o *Orchestrator) emit(fn func()) {
	o.events = append(o.events, fn)
}

// flush delivers queued observer calls outside the lock, one goroutine at
// a time. A call made while another goroutine is delivering, including one
// from inside an observer, returns at once and its events are delivered by
// that goroutine after the ones already queued.
func (o *Orchestrator) flush() {
	o.mu.Lock()
	if o.flushing {
		o.mu.Unlock()
		return
	}
	o.flushing = true
	for len(o.events) > 0 {
		fn := o.events[0]
		o.events = o.events[1:]
		o.mu.Unlock()
		if err := safeCall(func() error { fn(); return nil }); err != nil {
			log.Warnf("observer: %v", err)
		}
		o.mu.Lock()
	}
	o.flushing = false
	o.cond.Broadcast()
	o.mu.Unlock()
}

func (o *Orchestrator) shutdown() {
	o.shutdownOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()

		o.sig.Stop()

		o.mu.Lock()
		wasRecording := o.state == Recording
		if wasRecording {
			o.state = Idle
			o.emit(func() { o.obs.StateChanged(Idle) })
		}
		o.mu.Unlock()

		if wasRecording {
			discard := filepath.Join(o.settings.TempDir, "dictate-discard-"+uuid.NewString()+"."+o.settings.AudioFormat)
			if err := safeCall(func() error { _, err := o.rec.Stop(discard); return err }); err != nil {
				log.Warnf("stop recording on shutdown: %v", err)
			}
			removeAudio(discard)
		}
		o.flush()

		idle := make(chan struct{})
		go func() {
			o.Wait()
			close(idle)
		}()
		select {
		case <-idle:
		case <-time.After(o.grace):
			log.Warnf("shutdown: utterance still in flight after %s", o.grace)
		}
		log.Info("pipeline stopped")
	})
}

// safeCall turns a panic in a collaborator into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func removeAudio(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("remove audio file: %v", err)
	}
}
