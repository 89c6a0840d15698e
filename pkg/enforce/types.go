package enforce

import (
	"time"

	"sentinel-hq/aegis/pkg/vector"
)

// Decision is the outcome of an enforcement call or of a single rule.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// Machine-readable reasons for Block decisions.
const (
	// ReasonMissingLayer marks an intent without a routing layer.
	ReasonMissingLayer = "missing_layer"

	// ReasonMissingVector marks an intent whose vector was not resolved
	// by the upstream vectorizer.
	ReasonMissingVector = "missing_vector"

	// ReasonInvalidVector marks a malformed intent vector (wrong
	// dimension, NaN).
	ReasonInvalidVector = "invalid_vector"

	// ReasonNoRules marks a layer with zero installed rules.
	ReasonNoRules = "no_rules_for_layer"

	// ReasonRuleVectorMissing marks a rule whose vector missed on every
	// storage tier.
	ReasonRuleVectorMissing = "rule_vector_missing"

	// ReasonRuleMismatch marks a rule whose anchors the intent failed to
	// match.
	ReasonRuleMismatch = "rule_mismatch"
)

// Intent describes an action an agent wants to take, as resolved by the
// upstream vectorizer and control plane.
type Intent struct {
	// Layer is the routing key selecting which rules apply.
	Layer string `json:"layer"`

	// AgentID identifies the acting agent, for audit.
	AgentID string `json:"agent_id,omitempty"`

	// Operation is the action the agent wants to take.
	Operation string `json:"operation,omitempty"`

	// Target is the object the operation acts on.
	Target string `json:"target,omitempty"`

	// RiskContext carries the caller-supplied risk description.
	RiskContext string `json:"risk_context,omitempty"`

	// Vector is the 128-dimensional intent embedding. Nil when the
	// vectorizer failed; enforcement blocks rather than retrying.
	Vector vector.IntentVector `json:"vector,omitempty"`
}

// RuleEvidence records one rule's contribution to a decision, in
// evaluation order.
type RuleEvidence struct {
	// RuleID and RuleName identify the rule.
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`

	// Effect is what the rule does when the intent fails to match it.
	Effect string `json:"effect"`

	// Decision is this rule's contribution.
	Decision Decision `json:"decision"`

	// Reason is set when Decision is Block.
	Reason string `json:"reason,omitempty"`

	// Similarities and Thresholds are per-slot, in slot order.
	Similarities [vector.NumSlots]float64 `json:"similarities"`
	Thresholds   [vector.NumSlots]float64 `json:"thresholds"`

	// TriggeringSlot names the slot responsible for a Block, empty
	// otherwise.
	TriggeringSlot string `json:"triggering_slot,omitempty"`

	// Mode is the rule's scoring mode.
	Mode vector.Mode `json:"mode"`
}

// Result is the outcome of one enforcement call.
type Result struct {
	// Decision is the overall decision.
	Decision Decision `json:"decision"`

	// Reason is the machine-readable cause of a Block, empty on Allow.
	Reason string `json:"reason,omitempty"`

	// SlotSimilarities is the per-slot aggregate: the arithmetic mean
	// across all evaluated rules' similarities.
	SlotSimilarities [vector.NumSlots]float64 `json:"slot_similarities"`

	// RulesEvaluated counts the rules actually evaluated before the
	// call finished or short-circuited.
	RulesEvaluated int `json:"rules_evaluated"`

	// ShortCircuited is true when evaluation stopped at a Block before
	// exhausting the rule set.
	ShortCircuited bool `json:"short_circuited"`

	// Evidence lists per-rule outcomes in evaluation order.
	Evidence []RuleEvidence `json:"evidence,omitempty"`

	// Duration is the engine-side evaluation time.
	Duration time.Duration `json:"duration"`
}

// Blocked reports whether the result is a Block.
func (r *Result) Blocked() bool {
	return r.Decision == DecisionBlock
}
