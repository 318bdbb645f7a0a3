// Package metrics provides custom Prometheus metrics for the application components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains all Prometheus metrics related to external classifier calls.
type ClassifierMetrics struct {
	Requests        prometheus.Counter
	RequestErrors   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	registry        *prometheus.Registry
}

// NewClassifierMetrics creates a new instance of ClassifierMetrics.
// It requires a Prometheus registry to register the metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize classifier metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() error {
	m.Requests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classifier_requests_total",
		Help: "Total number of requests sent to the external classifier.",
	})

	m.RequestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classifier_request_errors_total",
		Help: "Total number of failed classifier requests by reason.",
	}, []string{"reason"})

	m.RequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "classifier_request_duration_seconds",
		Help:    "Duration of classifier requests in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	return nil
}

// IncrementRequests increases the classifier request counter by one.
func (m *ClassifierMetrics) IncrementRequests() {
	m.Requests.Inc()
}

// IncrementRequestErrors increases the error counter for the given failure reason.
func (m *ClassifierMetrics) IncrementRequestErrors(reason string) {
	m.RequestErrors.WithLabelValues(reason).Inc()
}

// ObserveRequestDuration records the duration of a classifier request in seconds.
func (m *ClassifierMetrics) ObserveRequestDuration(durationSeconds float64) {
	m.RequestDuration.Observe(durationSeconds)
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Requests
	m.RequestErrors.Collect(ch)
	ch <- m.RequestDuration
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Requests.Desc()
	m.RequestErrors.Describe(ch)
	ch <- m.RequestDuration.Desc()
}
