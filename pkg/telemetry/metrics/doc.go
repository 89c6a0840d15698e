// Package metrics provides Prometheus instrumentation for the
// enforcement pipeline.
//
// Metrics are grouped per concern: EnforcementMetrics covers decision
// counts, evaluation latency, and short-circuits; StoreMetrics covers
// the rule vector tiers (cache hits and misses, evictions, promotions,
// per-tier entry counts); RefreshMetrics covers the periodic reload
// cycle. The Collector owns the registry and wires the groups together.
package metrics
