package httpclient

import "github.com/prometheus/client_golang/prometheus"

// Metrics records per-call outcomes for the partner HTTP client, grouped
// by outcome label: success, error, timeout, circuit_breaker_open,
// breaker_success, breaker_failure.
type Metrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewMetrics creates and registers client metrics against registry. If
// registry is nil, a private registry is created (useful for tests).
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partner_call_duration_seconds",
			Help:    "Duration of outbound partner HTTP calls.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
		},
		[]string{"partner_id", "outcome"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partner_call_outcomes_total",
			Help: "Count of outbound partner HTTP call outcomes.",
		},
		[]string{"partner_id", "outcome"},
	)

	_ = registry.Register(duration)
	_ = registry.Register(outcomes)

	return &Metrics{duration: duration, outcomes: outcomes}
}

// record logs one call outcome: one of success, error, timeout,
// circuit_breaker_open, breaker_success, breaker_failure.
func (m *Metrics) record(partnerID, outcome string, d float64) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(partnerID, outcome).Inc()
	m.duration.WithLabelValues(partnerID, outcome).Observe(d)
}
