// Package audit emits one structured record per enforcement call,
// sufficient for offline review of every decision: the intent received,
// whether its vector resolved, the rules evaluated with their per-slot
// similarities, whether evaluation short-circuited, and the final
// decision.
//
// Records flow through a Sink. The log sink writes each record as a
// structured log line; the no-op sink discards them, keeping the hook
// point alive for deployments that audit elsewhere.
package audit
