// Package metricsvc exports application metrics to Prometheus.
package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkceria/ceria/core/edit"
)

const namespace = "ceria"

// Recorder is an edit.Recorder counting writes and timing save batches.
type Recorder struct {
	registry *prometheus.Registry

	writes       *prometheus.CounterVec
	saves        *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
	skipped      *prometheus.CounterVec
}

var _ edit.Recorder = (*Recorder)(nil)

// NewRecorder registers the edit metrics, plus the go and process collectors, in a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edit",
			Name:      "writes_total",
			Help:      "Record writes issued by save batches.",
		}, []string{"kind", "op", "outcome"}),
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edit",
			Name:      "saves_total",
			Help:      "Save batches by outcome: empty, ok or partial.",
		}, []string{"kind", "outcome"}),
		saveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "edit",
			Name:      "save_duration_seconds",
			Help:      "Duration of save batches, lock wait and reload included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edit",
			Name:      "skipped_total",
			Help:      "Blank edits without a persisted record, dropped without a write.",
		}, []string{"kind"}),
	}
}

func (r *Recorder) ObserveWrite(kind, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.writes.WithLabelValues(kind, op, outcome).Inc()
}

func (r *Recorder) ObserveSave(kind string, res edit.Result, elapsed time.Duration) {
	outcome := "ok"
	switch {
	case res.Succeeded+res.Failed+len(res.Skipped) == 0:
		outcome = "empty"
	case res.Failed > 0:
		outcome = "partial"
	}
	r.saves.WithLabelValues(kind, outcome).Inc()
	r.saveDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if n := len(res.Skipped); n > 0 {
		r.skipped.WithLabelValues(kind).Add(float64(n))
	}
}

// Registry returns the registry the metrics live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
