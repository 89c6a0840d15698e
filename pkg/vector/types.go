package vector

import (
	"fmt"
	"math"
)

// Dimension constants for the intent/rule vector layout.
const (
	// SlotDim is the dimension of a single slot sub-vector.
	SlotDim = 32

	// NumSlots is the number of semantic slots in an intent vector.
	NumSlots = 4

	// IntentDim is the total dimension of an intent vector.
	IntentDim = SlotDim * NumSlots

	// MaxAnchorsPerSlot is the maximum number of anchor vectors a slot may hold.
	MaxAnchorsPerSlot = 16
)

// Slot identifies one of the four semantic dimensions of an intent.
type Slot int

const (
	SlotAction Slot = iota
	SlotResource
	SlotData
	SlotRisk

	// SlotInvalid marks the absence of a slot (e.g. no triggering slot).
	SlotInvalid Slot = -1
)

// slotNames maps slots to their wire names, in intent vector order.
var slotNames = [NumSlots]string{"action", "resource", "data", "risk"}

// String returns the slot's wire name.
func (s Slot) String() string {
	if s < 0 || int(s) >= NumSlots {
		return "none"
	}
	return slotNames[s]
}

// Anchor is a single 32-dimensional reference embedding.
type Anchor []float32

// IntentVector is a 128-dimensional L2-normalized embedding of an agent
// intent, composed of four concatenated slot sub-vectors.
type IntentVector []float32

// Validate checks the intent vector's dimension and rejects NaN or Inf
// components. The L2-norm contract is the vectorizer's responsibility and
// is not re-checked here.
func (v IntentVector) Validate() error {
	if len(v) != IntentDim {
		return fmt.Errorf("intent vector has dimension %d, want %d", len(v), IntentDim)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("intent vector component %d is not finite", i)
		}
	}
	return nil
}

// SlotVector returns the 32-dimensional sub-vector for the given slot.
// The caller must have validated the intent vector first.
func (v IntentVector) SlotVector(s Slot) []float32 {
	start := int(s) * SlotDim
	return v[start : start+SlotDim]
}

// RuleVector holds a rule's matching anchors, grouped by slot. It is
// immutable once produced by the vectorizer; storage tiers must use Clone
// when copying across ownership boundaries.
type RuleVector struct {
	// Slots holds each slot's anchors in intent vector order.
	Slots [NumSlots][]Anchor
}

// AnchorCount returns the number of anchors in the given slot.
func (rv *RuleVector) AnchorCount(s Slot) int {
	if s < 0 || int(s) >= NumSlots {
		return 0
	}
	return len(rv.Slots[s])
}

// TotalAnchors returns the number of anchors across all slots.
func (rv *RuleVector) TotalAnchors() int {
	total := 0
	for i := range rv.Slots {
		total += len(rv.Slots[i])
	}
	return total
}

// Validate checks anchor counts, dimensions, and component finiteness.
func (rv *RuleVector) Validate() error {
	for i, anchors := range rv.Slots {
		if len(anchors) > MaxAnchorsPerSlot {
			return fmt.Errorf("slot %s has %d anchors, max %d", Slot(i), len(anchors), MaxAnchorsPerSlot)
		}
		for j, a := range anchors {
			if len(a) != SlotDim {
				return fmt.Errorf("slot %s anchor %d has dimension %d, want %d", Slot(i), j, len(a), SlotDim)
			}
			for k, x := range a {
				if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
					return fmt.Errorf("slot %s anchor %d component %d is not finite", Slot(i), j, k)
				}
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the rule vector. Promotion between storage
// tiers copies data rather than sharing mutable structure.
func (rv *RuleVector) Clone() *RuleVector {
	out := &RuleVector{}
	for i, anchors := range rv.Slots {
		if anchors == nil {
			continue
		}
		out.Slots[i] = make([]Anchor, len(anchors))
		for j, a := range anchors {
			c := make(Anchor, len(a))
			copy(c, a)
			out.Slots[i][j] = c
		}
	}
	return out
}

// Equal reports whether two rule vectors are bit-identical.
func (rv *RuleVector) Equal(other *RuleVector) bool {
	if other == nil {
		return false
	}
	for i := range rv.Slots {
		if len(rv.Slots[i]) != len(other.Slots[i]) {
			return false
		}
		for j := range rv.Slots[i] {
			a, b := rv.Slots[i][j], other.Slots[i][j]
			if len(a) != len(b) {
				return false
			}
			for k := range a {
				if math.Float32bits(a[k]) != math.Float32bits(b[k]) {
					return false
				}
			}
		}
	}
	return true
}
