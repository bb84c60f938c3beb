// Package metrics exposes Prometheus metrics for the detection pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leaf_backend/internal/feature/detection/usecase"
)

// Metrics holds the pipeline collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	inferenceSeconds *prometheus.HistogramVec
	inferences       *prometheus.CounterVec
	acquisitions     *prometheus.CounterVec
	resets           prometheus.Counter
}

var _ usecase.Recorder = (*Metrics)(nil)

// New creates a new Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inferenceSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leaf_inference_duration_seconds",
			Help:    "Time spent in model inference",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"profile"}),
		inferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaf_inferences_total",
			Help: "Detect actions by outcome",
		}, []string{"profile", "outcome"}),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaf_image_acquisitions_total",
			Help: "Images selected by source",
		}, []string{"source"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaf_session_resets_total",
			Help: "Session resets",
		}),
	}

	m.registry.MustRegister(
		m.inferenceSeconds,
		m.inferences,
		m.acquisitions,
		m.resets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveInference records one detect action.
func (m *Metrics) ObserveInference(profile, outcome string, elapsed time.Duration) {
	m.inferenceSeconds.WithLabelValues(profile).Observe(elapsed.Seconds())
	m.inferences.WithLabelValues(profile, outcome).Inc()
}

// IncAcquisition counts an accepted upload or capture.
func (m *Metrics) IncAcquisition(source string) {
	m.acquisitions.WithLabelValues(source).Inc()
}

// IncReset counts a session reset.
func (m *Metrics) IncReset() {
	m.resets.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
