package main

import (
	"sort"
	"sync"
	"time"

	"dictate/pipeline"
)

// fanout forwards every event to each observer in order.
type fanout []pipeline.Observer

func (f fanout) StateChanged(s pipeline.State) {
	for _, o := range f {
		o.StateChanged(s)
	}
}

func (f fanout) Delivered(u pipeline.Utterance) {
	for _, o := range f {
		o.Delivered(u)
	}
}

func (f fanout) Abandoned(u pipeline.Utterance, reason pipeline.Reason) {
	for _, o := range f {
		o.Abandoned(u, reason)
	}
}

// percentiles holds min, p50, p90, p95, max.
type percentiles [5]float64

// sessionStats tracks delivered and abandoned utterances for the session
// summary and the TUI latency table.
type sessionStats struct {
	mu        sync.Mutex
	totalMs   []float64
	abandoned map[pipeline.Reason]int
	now       func() time.Time
}

func newSessionStats() *sessionStats {
	return &sessionStats{abandoned: map[pipeline.Reason]int{}, now: time.Now}
}

func (s *sessionStats) StateChanged(pipeline.State) {}

func (s *sessionStats) Delivered(u pipeline.Utterance) {
	ms := float64(s.now().Sub(u.StartedAt).Microseconds()) / 1000
	s.mu.Lock()
	s.totalMs = append(s.totalMs, ms)
	s.mu.Unlock()
}

func (s *sessionStats) Abandoned(_ pipeline.Utterance, reason pipeline.Reason) {
	s.mu.Lock()
	s.abandoned[reason]++
	s.mu.Unlock()
}

// Count is the number of delivered utterances.
func (s *sessionStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.totalMs)
}

func (s *sessionStats) Abandons() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.abandoned {
		n += c
	}
	return n
}

// Latency reports release-to-delivery percentiles in milliseconds. ok is
// false until something has been delivered.
func (s *sessionStats) Latency() (p percentiles, ok bool) {
	s.mu.Lock()
	sorted := append([]float64(nil), s.totalMs...)
	s.mu.Unlock()
	if len(sorted) == 0 {
		return p, false
	}
	sort.Float64s(sorted)
	at := func(q float64) float64 {
		return sorted[int(float64(len(sorted)-1)*q)]
	}
	return percentiles{sorted[0], at(0.50), at(0.90), at(0.95), sorted[len(sorted)-1]}, true
}
