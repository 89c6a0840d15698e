// Package refresh keeps the fast storage tier consistent with the
// persistent snapshot tier.
//
// Three triggers feed the same reload path:
//
//   - RefreshNow: a synchronous, on-demand reload for urgent convergence
//     after an external change, returning the count and duration.
//   - A cron-scheduled background reload (default every 6 hours) on a
//     drift-resistant wall-clock schedule. Failures are logged and the
//     schedule continues on the next tick; the task never terminates and
//     never blocks request-handling threads.
//   - A file watcher on the snapshot path that triggers a debounced
//     reload when the file is replaced out from under the process.
//
// A reload clears the fast tier and reinserts the snapshot's contents,
// respecting the cache's own capacity and eviction rules. The transient
// shrink during the clear window is safe: a concurrent enforcement miss
// falls through to the persistent tiers.
package refresh
