// Package vector defines the semantic vector types used for rule matching
// and the pure comparison function that scores an agent intent against a
// rule's anchor vectors.
//
// # Vector Layout
//
// An intent vector is 128-dimensional and L2-normalized, composed of four
// concatenated 32-dimensional slot sub-vectors in fixed order:
//
//	[action | resource | data | risk]
//
// A rule vector holds up to 16 anchor vectors per slot, each 32-dimensional. Anchors
// are precomputed reference embeddings representing examples of the pattern
// the rule matches. Rule vectors are immutable once produced by the upstream
// vectorizer; all storage tiers copy rather than alias them.
//
// # Comparison
//
// Compare scores each slot as the maximum cosine similarity between the
// intent's slot sub-vector and the slot's anchors. An empty anchor slot
// scores 0, so a rule with no anchors for a slot can never match on it
// (fail-closed). Two decision modes exist:
//
//   - ModeMin: the intent matches only if every slot's similarity meets
//     that slot's threshold.
//   - ModeWeightedAverage: the weighted mean similarity is compared against
//     a single global threshold (or the weighted mean of the slot
//     thresholds when no global threshold is configured).
//
// Malformed input (dimension mismatch, NaN) never panics; it yields a
// non-match, which callers translate into a Block decision.
//
// # Persistence
//
// EncodeRuleVector and DecodeRuleVector implement the binary wire form used
// by the snapshot and durable storage tiers. Round-trips are bit-identical.
package vector
