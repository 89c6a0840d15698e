package metrics

import (
	"time"

	"sentinel-hq/aegis/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry and the per-concern metric
// groups. All recording methods are no-ops when metrics are disabled
// in the configuration, so callers never need to nil-check.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	enforcement *EnforcementMetrics
	store       *StoreMetrics
	refresh     *RefreshMetrics
}

// NewCollector creates a collector and registers all metric groups with
// the provided registry. If registry is nil a fresh registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "sentinel"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "aegis"
	}
	if len(cfg.EvalDurationBuckets) == 0 {
		// Enforcement is an in-memory vector scan, expected well under 10ms.
		cfg.EvalDurationBuckets = prometheus.ExponentialBuckets(0.000001, 2, 15) // 1µs to 16ms
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.enforcement = NewEnforcementMetrics(cfg, registry)
	c.store = NewStoreMetrics(cfg, registry)
	c.refresh = NewRefreshMetrics(cfg, registry)

	return c
}

// RecordEnforcement records a completed enforcement evaluation.
//
// Parameters:
//   - layer: policy layer the intent targeted
//   - decision: "allow" or "block"
//   - reason: block reason ("" for allows)
//   - duration: end-to-end evaluation duration
//   - rulesEvaluated: number of rules evaluated before the decision
//   - shortCircuited: whether a block stopped the scan early
func (c *Collector) RecordEnforcement(layer, decision, reason string, duration time.Duration, rulesEvaluated int, shortCircuited bool) {
	if !c.config.Enabled {
		return
	}
	c.enforcement.RecordEvaluation(layer, decision, reason, duration, rulesEvaluated, shortCircuited)
}

// RecordCacheLookup records a fast-tier lookup outcome. tier names the
// tier that ultimately served the vector ("fast", "snapshot",
// "durable"), or "miss" when no tier held it.
func (c *Collector) RecordCacheLookup(tier string) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordLookup(tier)
}

// RecordEviction records a fast-tier eviction run.
func (c *Collector) RecordEviction(evicted int) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordEviction(evicted)
}

// RecordPromotion records a slower-tier hit being promoted into the
// fast tier.
func (c *Collector) RecordPromotion(fromTier string) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordPromotion(fromTier)
}

// UpdateTierEntries updates the entry-count gauge for a storage tier.
func (c *Collector) UpdateTierEntries(tier string, entries int) {
	if !c.config.Enabled {
		return
	}
	c.store.UpdateEntries(tier, entries)
}

// RecordInstall records a rule install batch.
func (c *Collector) RecordInstall(installed, removed int) {
	if !c.config.Enabled {
		return
	}
	c.store.RecordInstall(installed, removed)
}

// RecordRefresh records an outcome of a snapshot refresh cycle.
func (c *Collector) RecordRefresh(success bool, loaded int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.refresh.RecordCycle(success, loaded, duration)
}

// Registry returns the Prometheus registry backing this collector, for
// mounting the /metrics endpoint:
//
//	http.Handle("/metrics", promhttp.HandlerFor(
//		collector.Registry(),
//		promhttp.HandlerOpts{},
//	))
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
