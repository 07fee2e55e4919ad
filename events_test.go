package main

import (
	"testing"
	"time"

	"dictate/pipeline"
)

type countingObserver struct {
	states            []pipeline.State
	delivered, failed int
}

func (c *countingObserver) StateChanged(s pipeline.State)                 { c.states = append(c.states, s) }
func (c *countingObserver) Delivered(pipeline.Utterance)                  { c.delivered++ }
func (c *countingObserver) Abandoned(pipeline.Utterance, pipeline.Reason) { c.failed++ }

func TestFanout(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	f := fanout{a, b}
	f.StateChanged(pipeline.Recording)
	f.Delivered(pipeline.Utterance{})
	f.Abandoned(pipeline.Utterance{}, pipeline.ReasonNoAudio)

	for _, o := range []*countingObserver{a, b} {
		if len(o.states) != 1 || o.delivered != 1 || o.failed != 1 {
			t.Errorf("observer got %+v", o)
		}
	}
}

func TestSessionStatsLatency(t *testing.T) {
	s := newSessionStats()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var offset time.Duration
	s.now = func() time.Time { return base.Add(offset) }

	if _, ok := s.Latency(); ok {
		t.Fatal("latency before any delivery")
	}
	for _, d := range []time.Duration{300, 100, 200, 500, 400} {
		offset = d * time.Millisecond
		s.Delivered(pipeline.Utterance{StartedAt: base})
	}
	s.Abandoned(pipeline.Utterance{}, pipeline.ReasonNoTranscript)
	s.Abandoned(pipeline.Utterance{}, pipeline.ReasonRewriteFailed)

	p, ok := s.Latency()
	if !ok {
		t.Fatal("no latency")
	}
	want := percentiles{100, 300, 400, 400, 500}
	if p != want {
		t.Errorf("latency = %v, want %v", p, want)
	}
	if s.Count() != 5 || s.Abandons() != 2 {
		t.Errorf("count = %d abandons = %d", s.Count(), s.Abandons())
	}
}
