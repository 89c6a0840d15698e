package metrics

import (
	"time"

	"sentinel-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RefreshMetrics tracks the periodic snapshot reload cycle.
//
// Metrics:
//   - sentinel_aegis_refresh_cycles_total: refresh cycles by outcome
//   - sentinel_aegis_refresh_duration_seconds: refresh cycle duration
//   - sentinel_aegis_refresh_loaded_entries: entries loaded by the last cycle
type RefreshMetrics struct {
	cyclesTotal *prometheus.CounterVec

	cycleDuration prometheus.Histogram

	loadedEntries prometheus.Gauge
}

// NewRefreshMetrics creates and registers refresh metrics with the
// provided registry.
func NewRefreshMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RefreshMetrics {
	rm := &RefreshMetrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "refresh_cycles_total",
				Help:      "Total snapshot refresh cycles by outcome",
			},
			[]string{"outcome"},
		),

		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "refresh_duration_seconds",
				Help:      "Duration of snapshot refresh cycles in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),

		loadedEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "refresh_loaded_entries",
				Help:      "Entries loaded into the fast tier by the last refresh",
			},
		),
	}

	registry.MustRegister(
		rm.cyclesTotal,
		rm.cycleDuration,
		rm.loadedEntries,
	)

	return rm
}

// RecordCycle records one refresh cycle outcome.
func (rm *RefreshMetrics) RecordCycle(success bool, loaded int, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	rm.cyclesTotal.WithLabelValues(outcome).Inc()
	rm.cycleDuration.Observe(duration.Seconds())
	if success {
		rm.loadedEntries.Set(float64(loaded))
	}
}
