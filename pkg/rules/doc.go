// Package rules defines the rule record model and the in-memory record
// tables that own installed rules.
//
// A Record describes one installed enforcement rule: its identity, owning
// agent, routing layer, evaluation priority, and typed matching parameters
// (per-slot thresholds, aggregation weights, decision mode, and a
// family-specific payload). Rule families form a closed set; each family
// carries its own typed parameter payload rather than an open map, so
// unknown families are rejected at install time instead of surfacing at
// enforcement time.
//
// The Table type holds records grouped by routing layer behind a
// reader/writer lock. Enforcement queries a layer's enabled records sorted
// by descending priority with a stable id tie-break, which keeps rule
// evaluation order deterministic for a given installed set.
package rules
