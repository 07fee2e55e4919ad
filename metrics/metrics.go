// Package metrics exports dictation counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dictate/log"
	"dictate/pipeline"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a pipeline.Observer that records utterance outcomes.
//
// Metrics:
//   - dictate_utterances_total{outcome,reason}
//   - dictate_delivery_seconds
//   - dictate_state
type Metrics struct {
	Utterances *prometheus.CounterVec
	Latency    prometheus.Histogram
	State      prometheus.Gauge

	now func() time.Time
}

// New registers the dictation metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Utterances: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dictate_utterances_total",
				Help: "Finished utterances by outcome",
			},
			[]string{"outcome", "reason"}, // "delivered" or "abandoned"
		),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dictate_delivery_seconds",
			Help:    "Time from key release to delivery",
			Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 21},
		}),
		State: f.NewGauge(prometheus.GaugeOpts{
			Name: "dictate_state",
			Help: "Pipeline state: 0 idle, 1 recording, 2 processing",
		}),
		now: time.Now,
	}
}

func (m *Metrics) StateChanged(s pipeline.State) {
	switch s {
	case pipeline.Recording:
		m.State.Set(1)
	case pipeline.Processing:
		m.State.Set(2)
	default:
		m.State.Set(0)
	}
}

func (m *Metrics) Delivered(u pipeline.Utterance) {
	m.Utterances.WithLabelValues("delivered", "").Inc()
	m.Latency.Observe(m.now().Sub(u.StartedAt).Seconds())
}

func (m *Metrics) Abandoned(_ pipeline.Utterance, reason pipeline.Reason) {
	m.Utterances.WithLabelValues("abandoned", string(reason)).Inc()
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("metrics server listening on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
