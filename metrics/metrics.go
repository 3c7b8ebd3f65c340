// Package metrics holds the prometheus collectors updated while classifying, generating and prioritizing.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pledge"

// Metrics groups the collectors of one pipeline.
type Metrics struct {
	OracleCalls *prometheus.CounterVec
	Rebuilds    prometheus.Counter
	Products    *prometheus.CounterVec
	Stages      *prometheus.HistogramVec
	Skipped     prometheus.Counter
}

// New creates the collectors and registers them on reg.
// If reg is nil, collectors are created but not registered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Number of calls to the satisfiability oracle, by operation.",
		}, []string{"op"}),
		Rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_rebuilds_total",
			Help:      "Number of times an oracle was rebuilt from its feature model.",
		}),
		Products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_generated_total",
			Help:      "Number of distinct products generated, by strategy.",
		}, []string{"strategy"}),
		Stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_skipped_total",
			Help:      "Number of product pairs whose distance was undefined.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.OracleCalls, m.Rebuilds, m.Products, m.Stages, m.Skipped)
	}
	return m
}

// OracleCall records one call to the oracle.
func (m *Metrics) OracleCall(op string) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(op).Inc()
}

// Rebuild records one oracle rebuild.
func (m *Metrics) Rebuild() {
	if m == nil {
		return
	}
	m.Rebuilds.Inc()
}

// Generated records n products generated by the given strategy.
func (m *Metrics) Generated(strategy string, n int) {
	if m == nil {
		return
	}
	m.Products.WithLabelValues(strategy).Add(float64(n))
}

// Skip records n product pairs whose distance could not be computed.
func (m *Metrics) Skip(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Skipped.Add(float64(n))
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.Stages.WithLabelValues(stage).Observe(d.Seconds())
}
