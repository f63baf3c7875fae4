package authz

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for authorization decisions.
type Metrics struct {
	decisions *prometheus.CounterVec
	duration  prometheus.Histogram
	errors    prometheus.Counter
}

// NewMetrics registers decision metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_authz_decisions_total",
		Help: "Authorization decisions by source and outcome.",
	}, []string{"source", "allowed"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aegis_authz_check_duration_seconds",
		Help:    "Latency of single authorization checks.",
		Buckets: prometheus.DefBuckets,
	})
	errors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aegis_authz_check_errors_total",
		Help: "Authorization checks that failed with an internal error.",
	})
	reg.MustRegister(decisions, duration, errors)
	return &Metrics{decisions: decisions, duration: duration, errors: errors}
}

// ObserveDecision records a completed decision. Failure to emit metrics never
// affects the returned decision; a nil receiver is a no-op.
func (m *Metrics) ObserveDecision(result CheckResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(result.Source), strconv.FormatBool(result.Allowed)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveError records a failed check.
func (m *Metrics) ObserveError() {
	if m == nil {
		return
	}
	m.errors.Inc()
}
