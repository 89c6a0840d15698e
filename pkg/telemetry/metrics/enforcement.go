package metrics

import (
	"time"

	"sentinel-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EnforcementMetrics tracks the decision pipeline.
//
// Metrics:
//   - sentinel_aegis_enforcement_decisions_total: decisions by layer, decision, and reason
//   - sentinel_aegis_enforcement_duration_seconds: evaluation latency by layer
//   - sentinel_aegis_enforcement_rules_evaluated: rules scanned per evaluation
//   - sentinel_aegis_enforcement_short_circuits_total: blocks that stopped the scan early
type EnforcementMetrics struct {
	decisionsTotal *prometheus.CounterVec

	evaluationDuration *prometheus.HistogramVec

	rulesEvaluated *prometheus.HistogramVec

	shortCircuitsTotal *prometheus.CounterVec
}

// NewEnforcementMetrics creates and registers enforcement metrics with
// the provided registry.
func NewEnforcementMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EnforcementMetrics {
	em := &EnforcementMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enforcement_decisions_total",
				Help:      "Total number of enforcement decisions",
			},
			[]string{"layer", "decision", "reason"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enforcement_duration_seconds",
				Help:      "Duration of enforcement evaluation in seconds",
				Buckets:   cfg.EvalDurationBuckets,
			},
			[]string{"layer"},
		),

		rulesEvaluated: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enforcement_rules_evaluated",
				Help:      "Number of rules evaluated per enforcement decision",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"layer"},
		),

		shortCircuitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enforcement_short_circuits_total",
				Help:      "Total number of evaluations stopped early by a blocking rule",
			},
			[]string{"layer"},
		),
	}

	registry.MustRegister(
		em.decisionsTotal,
		em.evaluationDuration,
		em.rulesEvaluated,
		em.shortCircuitsTotal,
	)

	return em
}

// RecordEvaluation records one completed enforcement decision. reason
// is empty for allows and the labels collapse to "ok" so allow and
// block series stay separable.
func (em *EnforcementMetrics) RecordEvaluation(layer, decision, reason string, duration time.Duration, rulesEvaluated int, shortCircuited bool) {
	if reason == "" {
		reason = "ok"
	}
	em.decisionsTotal.WithLabelValues(layer, decision, reason).Inc()
	em.evaluationDuration.WithLabelValues(layer).Observe(duration.Seconds())
	em.rulesEvaluated.WithLabelValues(layer).Observe(float64(rulesEvaluated))
	if shortCircuited {
		em.shortCircuitsTotal.WithLabelValues(layer).Inc()
	}
}
