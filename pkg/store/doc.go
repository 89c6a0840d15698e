// Package store implements the tiered rule-storage coordinator.
//
// The coordinator owns the rule-record tables and three storage tiers in
// rising cost order:
//
//  1. fast    - capacity-bounded in-memory cache (pkg/store/cache)
//  2. snapshot - persistent binary snapshot file (pkg/store/snapshot)
//  3. durable  - SQLite keyed store (pkg/store/durable)
//
// Lookups are read-through: a fast-tier hit returns immediately; a
// snapshot- or durable-tier hit promotes the vector into the fast tier
// (copying, never aliasing, and never deleting the slower copy) before
// returning. A read failure on one tier is treated as a miss on that tier
// and falls through to the next; only when every tier misses does the
// lookup fail, which enforcement translates into a Block.
//
// Installs write through every tier in order (record, fast, snapshot,
// durable) and fail the whole call if a persistent tier rejects the write,
// rolling back the earlier writes so a successful return guarantees
// crash-recoverable durability. Slow-tier writes run outside the fast
// tier's lock so they never stall concurrent enforcement reads.
//
// Each tier guards its own state with an independent reader/writer lock;
// the coordinator acquires them sequentially, never nested.
package store
