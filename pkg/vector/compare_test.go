package vector

import (
	"math"
	"testing"
)

// unit returns a SlotDim vector with a 1 in the given component.
func unit(component int) []float32 {
	v := make([]float32, SlotDim)
	v[component] = 1
	return v
}

// rotated returns a SlotDim unit vector at the given angle from component 0,
// so its cosine similarity to unit(0) is exactly cos(angle).
func rotated(angle float64) []float32 {
	v := make([]float32, SlotDim)
	v[0] = float32(math.Cos(angle))
	v[1] = float32(math.Sin(angle))
	return v
}

// intentFrom builds an intent vector from four slot sub-vectors.
func intentFrom(action, resource, data, risk []float32) IntentVector {
	v := make(IntentVector, 0, IntentDim)
	for _, sub := range [][]float32{action, resource, data, risk} {
		v = append(v, sub...)
	}
	return v
}

// allSlotsRule returns a rule vector with unit(0) as the sole anchor in
// every slot.
func allSlotsRule() *RuleVector {
	rv := &RuleVector{}
	for i := range rv.Slots {
		rv.Slots[i] = []Anchor{unit(0)}
	}
	return rv
}

func uniformThresholds(t float64) Thresholds {
	return Thresholds{t, t, t, t}
}

func uniformWeights(w float64) Weights {
	return Weights{w, w, w, w}
}

func TestCompareMinMode(t *testing.T) {
	aligned := unit(0)
	tests := []struct {
		name       string
		intent     IntentVector
		thresholds Thresholds
		wantMatch  bool
		wantSlot   Slot
	}{
		{
			name:       "all slots aligned",
			intent:     intentFrom(aligned, aligned, aligned, aligned),
			thresholds: uniformThresholds(0.9),
			wantMatch:  true,
			wantSlot:   SlotInvalid,
		},
		{
			name:       "action slot below threshold",
			intent:     intentFrom(rotated(math.Pi/3), aligned, aligned, aligned), // cos=0.5
			thresholds: uniformThresholds(0.8),
			wantMatch:  false,
			wantSlot:   SlotAction,
		},
		{
			name:       "risk slot below threshold",
			intent:     intentFrom(aligned, aligned, aligned, rotated(math.Pi/3)),
			thresholds: uniformThresholds(0.8),
			wantMatch:  false,
			wantSlot:   SlotRisk,
		},
		{
			name:       "first failing slot wins when several fail",
			intent:     intentFrom(aligned, rotated(math.Pi/3), rotated(math.Pi/3), aligned),
			thresholds: uniformThresholds(0.8),
			wantMatch:  false,
			wantSlot:   SlotResource,
		},
		{
			name:       "similarity exactly at threshold matches",
			intent:     intentFrom(aligned, aligned, aligned, aligned),
			thresholds: uniformThresholds(1.0),
			wantMatch:  true,
			wantSlot:   SlotInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.intent, allSlotsRule(), tt.thresholds, uniformWeights(1), ModeMin, nil)
			if got.Matched != tt.wantMatch {
				t.Errorf("Matched = %v, want %v (sims %v)", got.Matched, tt.wantMatch, got.Similarities)
			}
			if got.TriggeringSlot != tt.wantSlot {
				t.Errorf("TriggeringSlot = %v, want %v", got.TriggeringSlot, tt.wantSlot)
			}
		})
	}
}

func TestCompareMaxOverAnchors(t *testing.T) {
	// Second anchor aligns with the intent; max must pick it up.
	rv := allSlotsRule()
	rv.Slots[SlotAction] = []Anchor{unit(5), unit(0)}

	intent := intentFrom(unit(0), unit(0), unit(0), unit(0))
	got := Compare(intent, rv, uniformThresholds(0.9), uniformWeights(1), ModeMin, nil)
	if !got.Matched {
		t.Fatalf("Matched = false, want true (sims %v)", got.Similarities)
	}
	if got.Similarities[SlotAction] < 0.99 {
		t.Errorf("action similarity = %v, want ~1.0", got.Similarities[SlotAction])
	}
}

func TestCompareEmptySlotFailsClosed(t *testing.T) {
	rv := allSlotsRule()
	rv.Slots[SlotData] = nil

	intent := intentFrom(unit(0), unit(0), unit(0), unit(0))
	got := Compare(intent, rv, uniformThresholds(0.5), uniformWeights(1), ModeMin, nil)
	if got.Matched {
		t.Fatal("Matched = true for rule with empty data slot, want false")
	}
	if got.Similarities[SlotData] != 0 {
		t.Errorf("data similarity = %v, want 0", got.Similarities[SlotData])
	}
	if got.TriggeringSlot != SlotData {
		t.Errorf("TriggeringSlot = %v, want %v", got.TriggeringSlot, SlotData)
	}
}

func TestCompareWeightedAverage(t *testing.T) {
	aligned := unit(0)
	half := rotated(math.Pi / 3) // cos = 0.5

	tests := []struct {
		name            string
		intent          IntentVector
		weights         Weights
		globalThreshold *float64
		thresholds      Thresholds
		wantMatch       bool
	}{
		{
			name:            "above global threshold",
			intent:          intentFrom(aligned, aligned, aligned, half), // avg 0.875
			weights:         uniformWeights(1),
			globalThreshold: ptr(0.8),
			wantMatch:       true,
		},
		{
			name:            "below global threshold",
			intent:          intentFrom(half, half, half, aligned), // avg 0.625
			weights:         uniformWeights(1),
			globalThreshold: ptr(0.8),
			wantMatch:       false,
		},
		{
			name:    "weights shift the average",
			intent:  intentFrom(aligned, half, half, half),
			weights: Weights{10, 1, 1, 1}, // heavy action weight pulls avg above 0.8
			globalThreshold: ptr(0.8),
			wantMatch:       true,
		},
		{
			name:       "falls back to weighted mean of thresholds",
			intent:     intentFrom(aligned, aligned, aligned, half), // avg 0.875
			weights:    uniformWeights(1),
			thresholds: uniformThresholds(0.9),
			wantMatch:  false,
		},
		{
			name:      "zero weights fail closed",
			intent:    intentFrom(aligned, aligned, aligned, aligned),
			weights:   uniformWeights(0),
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.intent, allSlotsRule(), tt.thresholds, tt.weights, ModeWeightedAverage, tt.globalThreshold)
			if got.Matched != tt.wantMatch {
				t.Errorf("Matched = %v, want %v (sims %v)", got.Matched, tt.wantMatch, got.Similarities)
			}
		})
	}
}

func TestCompareMalformedInputFailsClosed(t *testing.T) {
	valid := intentFrom(unit(0), unit(0), unit(0), unit(0))
	nanIntent := intentFrom(unit(0), unit(0), unit(0), unit(0))
	nanIntent[3] = float32(math.NaN())

	badDims := &RuleVector{}
	badDims.Slots[SlotAction] = []Anchor{make(Anchor, 7)}

	tests := []struct {
		name       string
		intent     IntentVector
		rv         *RuleVector
		mode       Mode
		thresholds Thresholds
	}{
		{name: "short intent", intent: valid[:100], rv: allSlotsRule(), mode: ModeMin},
		{name: "nil intent", intent: nil, rv: allSlotsRule(), mode: ModeMin},
		{name: "NaN intent component", intent: nanIntent, rv: allSlotsRule(), mode: ModeMin},
		{name: "nil rule vector", intent: valid, rv: nil, mode: ModeMin},
		{name: "wrong anchor dimension", intent: valid, rv: badDims, mode: ModeMin},
		{name: "unknown mode", intent: valid, rv: allSlotsRule(), mode: Mode("fuzzy")},
		{
			name:       "NaN threshold",
			intent:     valid,
			rv:         allSlotsRule(),
			mode:       ModeMin,
			thresholds: Thresholds{math.NaN(), 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.intent, tt.rv, tt.thresholds, uniformWeights(1), tt.mode, nil)
			if got.Matched {
				t.Error("Matched = true for malformed input, want false")
			}
		})
	}
}

func TestCompareNegativeSimilarityClampsToZero(t *testing.T) {
	opposed := make([]float32, SlotDim)
	opposed[0] = -1

	rv := allSlotsRule()
	intent := intentFrom(opposed, unit(0), unit(0), unit(0))
	got := Compare(intent, rv, uniformThresholds(0.5), uniformWeights(1), ModeMin, nil)
	if got.Similarities[SlotAction] != 0 {
		t.Errorf("action similarity = %v, want 0 (clamped)", got.Similarities[SlotAction])
	}
	if got.Matched {
		t.Error("Matched = true for opposed action vector, want false")
	}
}

func ptr(f float64) *float64 { return &f }
