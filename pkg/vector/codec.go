package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Binary wire form for a rule vector, shared by the snapshot and durable
// storage tiers:
//
//	u8   codec version
//	u8   slot count (always NumSlots)
//	per slot:
//	  u8   anchor count
//	  anchor count × SlotDim × f32 (little-endian IEEE 754)
//
// Encoding and decoding are exact: float bits pass through untouched, so a
// round-trip is bit-identical.
const codecVersion = 1

// EncodedSize returns the encoded byte length of a rule vector.
func EncodedSize(rv *RuleVector) int {
	size := 2 + NumSlots // version, slot count, per-slot anchor counts
	size += rv.TotalAnchors() * SlotDim * 4
	return size
}

// EncodeRuleVector serializes a rule vector into its binary wire form.
func EncodeRuleVector(rv *RuleVector) ([]byte, error) {
	if rv == nil {
		return nil, fmt.Errorf("rule vector is nil")
	}
	if err := rv.Validate(); err != nil {
		return nil, fmt.Errorf("encode rule vector: %w", err)
	}

	buf := make([]byte, 0, EncodedSize(rv))
	buf = append(buf, codecVersion, NumSlots)
	for i := range rv.Slots {
		buf = append(buf, byte(len(rv.Slots[i])))
		for _, a := range rv.Slots[i] {
			for _, x := range a {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
			}
		}
	}
	return buf, nil
}

// DecodeRuleVector deserializes a rule vector from its binary wire form.
func DecodeRuleVector(data []byte) (*RuleVector, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("rule vector payload truncated: %d bytes", len(data))
	}
	if data[0] != codecVersion {
		return nil, fmt.Errorf("unsupported rule vector codec version %d", data[0])
	}
	if data[1] != NumSlots {
		return nil, fmt.Errorf("rule vector has %d slots, want %d", data[1], NumSlots)
	}

	rv := &RuleVector{}
	pos := 2
	for i := 0; i < NumSlots; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("rule vector payload truncated at slot %s", Slot(i))
		}
		count := int(data[pos])
		pos++
		if count > MaxAnchorsPerSlot {
			return nil, fmt.Errorf("slot %s has %d anchors, max %d", Slot(i), count, MaxAnchorsPerSlot)
		}
		need := count * SlotDim * 4
		if len(data)-pos < need {
			return nil, fmt.Errorf("rule vector payload truncated in slot %s anchors", Slot(i))
		}
		if count == 0 {
			continue
		}
		rv.Slots[i] = make([]Anchor, count)
		for j := 0; j < count; j++ {
			a := make(Anchor, SlotDim)
			for k := 0; k < SlotDim; k++ {
				a[k] = math.Float32frombits(binary.LittleEndian.Uint32(data[pos:]))
				pos += 4
			}
			rv.Slots[i][j] = a
		}
	}
	if pos != len(data) {
		return nil, fmt.Errorf("rule vector payload has %d trailing bytes", len(data)-pos)
	}
	return rv, nil
}
