package vector

import "math"

// Mode selects how per-slot similarities combine into a match decision.
type Mode string

const (
	// ModeMin requires every slot's similarity to meet its own threshold.
	ModeMin Mode = "min"

	// ModeWeightedAverage compares the weighted mean similarity against a
	// single threshold.
	ModeWeightedAverage Mode = "weighted_average"
)

// Valid reports whether the mode is a known decision mode.
func (m Mode) Valid() bool {
	return m == ModeMin || m == ModeWeightedAverage
}

// Thresholds holds one similarity threshold per slot.
type Thresholds [NumSlots]float64

// Weights holds one aggregation weight per slot, used by ModeWeightedAverage.
type Weights [NumSlots]float64

// Comparison is the result of scoring an intent against a rule vector.
type Comparison struct {
	// Matched is true when the intent satisfies the rule's anchors under
	// the configured mode. A non-match means the rule blocks the intent.
	Matched bool

	// Similarities holds the per-slot maximum cosine similarity, returned
	// for evidence regardless of mode.
	Similarities [NumSlots]float64

	// TriggeringSlot is the slot responsible for a non-match: in ModeMin
	// the first slot (in slot order) below its threshold, in
	// ModeWeightedAverage the lowest-similarity slot. SlotInvalid when
	// Matched is true.
	TriggeringSlot Slot
}

// Compare scores an intent vector against a rule's anchors and decides
// whether the intent matches under the given mode. For each slot it takes
// the maximum cosine similarity between the intent's slot sub-vector and
// every anchor in that slot; an empty anchor set scores 0 and therefore
// fails any positive threshold.
//
// globalThreshold is only consulted in ModeWeightedAverage; when nil, the
// weighted average of the slot thresholds is used in its place.
//
// Malformed input (wrong dimensions, NaN components, unknown mode) yields a
// non-match with zero similarities rather than an error or panic: the
// enforcement path treats any non-match as a Block.
func Compare(intent IntentVector, rv *RuleVector, thresholds Thresholds, weights Weights, mode Mode, globalThreshold *float64) Comparison {
	failed := Comparison{Matched: false, TriggeringSlot: SlotAction}
	if rv == nil || intent.Validate() != nil || rv.Validate() != nil || !mode.Valid() {
		return failed
	}
	for i := 0; i < NumSlots; i++ {
		if !isFinite(thresholds[i]) || !isFinite(weights[i]) {
			return failed
		}
	}
	if globalThreshold != nil && !isFinite(*globalThreshold) {
		return failed
	}

	var sims [NumSlots]float64
	for i := 0; i < NumSlots; i++ {
		sims[i] = maxAnchorSimilarity(intent.SlotVector(Slot(i)), rv.Slots[i])
	}

	switch mode {
	case ModeMin:
		for i := 0; i < NumSlots; i++ {
			if sims[i] < thresholds[i] {
				return Comparison{Matched: false, Similarities: sims, TriggeringSlot: Slot(i)}
			}
		}
		return Comparison{Matched: true, Similarities: sims, TriggeringSlot: SlotInvalid}

	case ModeWeightedAverage:
		avg, ok := weightedAverage(sims, weights)
		if !ok {
			// Zero total weight cannot produce a meaningful score.
			return Comparison{Matched: false, Similarities: sims, TriggeringSlot: lowestSlot(sims)}
		}
		limit := 0.0
		if globalThreshold != nil {
			limit = *globalThreshold
		} else {
			limit, _ = weightedAverage(toFloats(thresholds), weights)
		}
		if avg < limit {
			return Comparison{Matched: false, Similarities: sims, TriggeringSlot: lowestSlot(sims)}
		}
		return Comparison{Matched: true, Similarities: sims, TriggeringSlot: SlotInvalid}
	}

	return failed
}

// maxAnchorSimilarity returns the maximum cosine similarity between the
// slot sub-vector and the slot's anchors, or 0 for an empty anchor set.
func maxAnchorSimilarity(sub []float32, anchors []Anchor) float64 {
	best := 0.0
	for i, a := range anchors {
		sim := cosine(sub, a)
		if i == 0 || sim > best {
			best = sim
		}
	}
	if best < 0 {
		// Negative similarity can never satisfy a threshold in [0,1];
		// clamp so evidence stays in a stable range.
		best = 0
	}
	return best
}

// cosine computes the cosine similarity between two equal-length vectors.
// A zero-norm operand scores 0.
func cosine(a []float32, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// weightedAverage computes sum(w·s)/sum(w); ok is false when the total
// weight is zero or not finite.
func weightedAverage(sims [NumSlots]float64, weights Weights) (float64, bool) {
	var sum, total float64
	for i := 0; i < NumSlots; i++ {
		sum += weights[i] * sims[i]
		total += weights[i]
	}
	if total == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, false
	}
	return sum / total, true
}

// lowestSlot returns the slot with the lowest similarity, first-wins on ties.
func lowestSlot(sims [NumSlots]float64) Slot {
	lowest := Slot(0)
	for i := 1; i < NumSlots; i++ {
		if sims[i] < sims[lowest] {
			lowest = Slot(i)
		}
	}
	return lowest
}

func toFloats(t Thresholds) [NumSlots]float64 {
	return [NumSlots]float64(t)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
