// Package cache implements the fast in-memory storage tier for rule
// vectors: a capacity-bounded map from rule id to cached entry.
//
// When an insert would exceed capacity, the cache evicts a batch of
// max(1, 10% of capacity) entries, chosen by oldest last-evaluated time
// with an id tie-break. Batching amortizes the sort across many inserts.
// The enforcement path reads through GetAndMark, which refreshes an
// entry's last-evaluated time so actively used rules resist eviction;
// maintenance reads use Get, which never mutates.
//
// The cache never exceeds its capacity when observed between operations.
// Cached vectors are treated as immutable; callers must not modify the
// returned RuleVector.
package cache
