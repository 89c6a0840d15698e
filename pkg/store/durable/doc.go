// Package durable implements the durable storage tier: an
// unlimited-capacity keyed store for rule vectors backed by SQLite.
//
// This tier is the disaster-recovery copy, not a hot path. Every installed
// rule vector is written here synchronously during install, so the
// database alone is sufficient to rebuild the snapshot and fast tiers
// after a crash. Rows are keyed by rule id with indexed layer and family
// metadata for operational queries.
//
// The backend uses WAL mode with a busy timeout and a single writer
// connection, and pre-compiles its statements at open.
package durable
