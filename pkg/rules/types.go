package rules

import (
	"fmt"
	"time"

	"sentinel-hq/aegis/pkg/vector"
)

// FamilyID identifies a rule family. Families are a closed set; each family
// has its own typed parameter payload.
type FamilyID string

const (
	// FamilyToolWhitelist rules anchor on the set of tools an agent is
	// allowed to invoke.
	FamilyToolWhitelist FamilyID = "tool_whitelist"

	// FamilyDesignBoundary rules anchor on the behavioral envelope an
	// agent was designed for.
	FamilyDesignBoundary FamilyID = "design_boundary"
)

// KnownFamilies lists every supported rule family.
var KnownFamilies = []FamilyID{FamilyToolWhitelist, FamilyDesignBoundary}

// Valid reports whether the family is a known rule family.
func (f FamilyID) Valid() bool {
	for _, k := range KnownFamilies {
		if f == k {
			return true
		}
	}
	return false
}

// FamilyParams is the closed tagged-variant interface for family-specific
// rule parameters.
type FamilyParams interface {
	// Family returns the family this payload belongs to.
	Family() FamilyID
}

// ToolWhitelistParams configures a tool-whitelist rule.
type ToolWhitelistParams struct {
	// Tools lists the tool names the anchors were vectorized from, kept
	// for audit evidence. Matching itself is purely vector-based.
	Tools []string `json:"tools"`
}

// Family returns FamilyToolWhitelist.
func (ToolWhitelistParams) Family() FamilyID { return FamilyToolWhitelist }

// DesignBoundaryParams configures a design-boundary rule.
type DesignBoundaryParams struct {
	// BoundaryID references the design boundary definition in the
	// control plane.
	BoundaryID string `json:"boundary_id"`

	// Description is the human-readable boundary statement the anchors
	// were vectorized from.
	Description string `json:"description"`
}

// Family returns FamilyDesignBoundary.
func (DesignBoundaryParams) Family() FamilyID { return FamilyDesignBoundary }

// Params holds a rule's matching configuration.
type Params struct {
	// Thresholds holds the per-slot similarity thresholds.
	Thresholds vector.Thresholds

	// Weights holds the per-slot aggregation weights (ModeWeightedAverage).
	Weights vector.Weights

	// Mode selects the decision mode.
	Mode vector.Mode

	// GlobalThreshold overrides the threshold the weighted average is
	// compared against. Nil means the weighted mean of Thresholds.
	GlobalThreshold *float64

	// Family carries the family-specific payload. May be nil for rules
	// whose family needs no extra configuration.
	Family FamilyParams
}

// Record is one installed enforcement rule. Records are owned by a Table
// and treated as immutable after installation; updates replace the record.
type Record struct {
	// ID uniquely identifies the rule across all layers and agents.
	ID string

	// Name is the human-readable rule name, cited in evidence.
	Name string

	// FamilyID is the rule's family.
	FamilyID FamilyID

	// Layer is the routing key enforcement uses to select rules.
	Layer string

	// AgentID is the owning agent.
	AgentID string

	// Priority orders evaluation; higher evaluates first.
	Priority int

	// Enabled gates whether enforcement considers the rule.
	Enabled bool

	// CreatedAt is the installation time.
	CreatedAt time.Time

	// Params holds the matching configuration.
	Params Params
}

// Validate checks the record's identity fields and matching parameters.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}
	if r.Layer == "" {
		return fmt.Errorf("rule %s: layer cannot be empty", r.ID)
	}
	if r.AgentID == "" {
		return fmt.Errorf("rule %s: agent id cannot be empty", r.ID)
	}
	if !r.FamilyID.Valid() {
		return fmt.Errorf("rule %s: unknown family %q", r.ID, r.FamilyID)
	}
	if !r.Params.Mode.Valid() {
		return fmt.Errorf("rule %s: unknown decision mode %q", r.ID, r.Params.Mode)
	}
	if r.Params.Family != nil && r.Params.Family.Family() != r.FamilyID {
		return fmt.Errorf("rule %s: family params belong to %q, record declares %q",
			r.ID, r.Params.Family.Family(), r.FamilyID)
	}
	for i, t := range r.Params.Thresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("rule %s: %s threshold %v outside [0,1]", r.ID, vector.Slot(i), t)
		}
	}
	for i, w := range r.Params.Weights {
		if w < 0 {
			return fmt.Errorf("rule %s: %s weight %v is negative", r.ID, vector.Slot(i), w)
		}
	}
	if g := r.Params.GlobalThreshold; g != nil && (*g < 0 || *g > 1) {
		return fmt.Errorf("rule %s: global threshold %v outside [0,1]", r.ID, *g)
	}
	return nil
}
