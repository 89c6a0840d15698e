package metrics

import (
	"sentinel-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks the three-tier rule vector store.
//
// Metrics:
//   - sentinel_aegis_store_lookups_total: vector lookups by serving tier
//   - sentinel_aegis_store_evictions_total: fast-tier eviction runs
//   - sentinel_aegis_store_evicted_entries_total: entries removed by eviction
//   - sentinel_aegis_store_promotions_total: promotions into the fast tier by source tier
//   - sentinel_aegis_store_entries: current entries per tier
//   - sentinel_aegis_store_installs_total: rules installed and replaced
type StoreMetrics struct {
	lookupsTotal *prometheus.CounterVec

	evictionsTotal prometheus.Counter

	evictedEntriesTotal prometheus.Counter

	promotionsTotal *prometheus.CounterVec

	entries *prometheus.GaugeVec

	installsTotal *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics with the provided
// registry.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_lookups_total",
				Help:      "Total vector lookups by the tier that served them",
			},
			[]string{"tier"},
		),

		evictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_evictions_total",
				Help:      "Total fast-tier eviction runs",
			},
		),

		evictedEntriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_evicted_entries_total",
				Help:      "Total entries removed from the fast tier by eviction",
			},
		),

		promotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_promotions_total",
				Help:      "Total vectors promoted into the fast tier by source tier",
			},
			[]string{"from_tier"},
		),

		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_entries",
				Help:      "Current number of entries per storage tier",
			},
			[]string{"tier"},
		),

		installsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "store_installs_total",
				Help:      "Total rule install operations by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		sm.lookupsTotal,
		sm.evictionsTotal,
		sm.evictedEntriesTotal,
		sm.promotionsTotal,
		sm.entries,
		sm.installsTotal,
	)

	return sm
}

// RecordLookup records a vector lookup served by the named tier, or
// "miss" when no tier held the vector.
func (sm *StoreMetrics) RecordLookup(tier string) {
	sm.lookupsTotal.WithLabelValues(tier).Inc()
}

// RecordEviction records one eviction run that removed the given number
// of entries.
func (sm *StoreMetrics) RecordEviction(evicted int) {
	sm.evictionsTotal.Inc()
	sm.evictedEntriesTotal.Add(float64(evicted))
}

// RecordPromotion records a vector promoted into the fast tier from the
// named slower tier.
func (sm *StoreMetrics) RecordPromotion(fromTier string) {
	sm.promotionsTotal.WithLabelValues(fromTier).Inc()
}

// UpdateEntries updates the entry-count gauge for a tier.
func (sm *StoreMetrics) UpdateEntries(tier string, entries int) {
	sm.entries.WithLabelValues(tier).Set(float64(entries))
}

// RecordInstall records an install batch: installed counts rules
// written, removed counts prior rules replaced.
func (sm *StoreMetrics) RecordInstall(installed, removed int) {
	sm.installsTotal.WithLabelValues("installed").Add(float64(installed))
	sm.installsTotal.WithLabelValues("replaced").Add(float64(removed))
}
