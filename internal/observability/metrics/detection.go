package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics contains all Prometheus metrics related to detection record handling.
type DetectionMetrics struct {
	RecordsCreated *prometheus.CounterVec
	LinkFailures   prometheus.Counter
	registry       *prometheus.Registry
}

// NewDetectionMetrics creates a new instance of DetectionMetrics.
func NewDetectionMetrics(registry *prometheus.Registry) (*DetectionMetrics, error) {
	m := &DetectionMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize detection metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detection metrics: %w", err)
	}
	return m, nil
}

func (m *DetectionMetrics) initMetrics() error {
	m.RecordsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "detection_records_created_total",
		Help: "Total number of detection records created by source.",
	}, []string{"source"})

	m.LinkFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "detection_link_failures_total",
		Help: "Total number of failed owner-list link operations.",
	})

	return nil
}

// IncrementRecordsCreated increases the created-record counter for the given source.
// Source is "upload" for the pipeline path and "manual" for the manual-save path.
func (m *DetectionMetrics) IncrementRecordsCreated(source string) {
	m.RecordsCreated.WithLabelValues(source).Inc()
}

// IncrementLinkFailures increases the owner-link failure counter by one.
func (m *DetectionMetrics) IncrementLinkFailures() {
	m.LinkFailures.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *DetectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RecordsCreated.Collect(ch)
	ch <- m.LinkFailures
}

// Describe implements the prometheus.Collector interface.
func (m *DetectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RecordsCreated.Describe(ch)
	ch <- m.LinkFailures.Desc()
}
