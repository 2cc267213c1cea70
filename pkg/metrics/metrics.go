package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the filter bookmark metrics
type Metrics struct {
	// Store operations by op (initialize, save, remove, load, find) and status
	Operations *prometheus.CounterVec
	// Persisted collections that failed to decode
	DecodeFailures prometheus.Counter
	// Backend call latency by call (get, set)
	BackendLatency *prometheus.HistogramVec
	// Sessions currently holding an in-memory view
	ActiveSessions prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil registerer
// leaves them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_operations_total",
			Help:      "Total number of saved filter operations",
		}, []string{"operation", "status"}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_decode_failures_total",
			Help:      "Total number of persisted filter collections that could not be decoded",
		}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_operation_duration_seconds",
			Help:      "Duration of key-value backend calls",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"call"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of sessions with a loaded filter view",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Operations, m.DecodeFailures, m.BackendLatency, m.ActiveSessions)
	}
	return m
}
