package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"dictate/pipeline"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	start := time.Unix(1000, 0)
	m.now = func() time.Time { return start.Add(1500 * time.Millisecond) }

	m.Delivered(pipeline.Utterance{StartedAt: start})
	m.Delivered(pipeline.Utterance{StartedAt: start})
	m.Abandoned(pipeline.Utterance{}, pipeline.ReasonNoAudio)

	if got := counterValue(t, reg, "dictate_utterances_total", map[string]string{"outcome": "delivered", "reason": ""}); got != 2 {
		t.Errorf("delivered = %v, want 2", got)
	}
	if got := counterValue(t, reg, "dictate_utterances_total", map[string]string{"outcome": "abandoned", "reason": "no_audio"}); got != 1 {
		t.Errorf("abandoned = %v, want 1", got)
	}

	families, _ := reg.Gather()
	for _, mf := range families {
		if mf.GetName() == "dictate_delivery_seconds" {
			if mf.GetHelp() != "Time from key release to delivery" {
				t.Errorf("help = %q", mf.GetHelp())
			}
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 || h.GetSampleSum() != 3 {
				t.Errorf("histogram count=%d sum=%v", h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}

func TestMetricsState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.StateChanged(pipeline.Processing)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "dictate_state" {
			if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 2 {
				t.Errorf("state = %v, want 2", got)
			}
			return
		}
	}
	t.Fatal("dictate_state not gathered")
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	reg := prometheus.NewRegistry()
	New(reg).Abandoned(pipeline.Utterance{}, pipeline.ReasonShutdown)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, addr, reg) }()

	var body string
	for i := 0; i < 50; i++ {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(b)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(body, `dictate_utterances_total{outcome="abandoned",reason="shutdown"} 1`) {
		t.Errorf("unexpected metrics body:\n%s", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
