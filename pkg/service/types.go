package service

import (
	"fmt"

	"sentinel-hq/aegis/pkg/refresh"
	"sentinel-hq/aegis/pkg/rules"
	"sentinel-hq/aegis/pkg/store"
	"sentinel-hq/aegis/pkg/vector"
)

// RuleInstall is one rule in an install request.
type RuleInstall struct {
	// ID is the rule identifier. Empty means the service assigns one.
	ID string `json:"id,omitempty"`

	// Name is the human-readable rule name cited in evidence.
	Name string `json:"name"`

	// Family selects the rule family.
	Family rules.FamilyID `json:"family"`

	// Layer is the routing key enforcement uses to select this rule.
	Layer string `json:"layer"`

	// Priority orders evaluation; higher evaluates first.
	Priority int `json:"priority"`

	// Enabled gates evaluation. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty"`

	// Thresholds, Weights, Mode, and GlobalThreshold configure matching.
	Thresholds      vector.Thresholds `json:"thresholds"`
	Weights         vector.Weights    `json:"weights"`
	Mode            vector.Mode       `json:"mode"`
	GlobalThreshold *float64          `json:"global_threshold,omitempty"`

	// Tools carries the tool-whitelist payload (FamilyToolWhitelist).
	Tools []string `json:"tools,omitempty"`

	// Boundary carries the design-boundary payload (FamilyDesignBoundary).
	Boundary *rules.DesignBoundaryParams `json:"boundary,omitempty"`

	// Anchors is the rule's anchor vector set.
	Anchors *vector.RuleVector `json:"anchors"`
}

// InstallRequest installs a complete rule set for one agent, replacing
// whatever set was installed before.
type InstallRequest struct {
	// AgentID is the agent the rules belong to.
	AgentID string `json:"agent_id"`

	// ConfigID identifies the control-plane configuration this set was
	// generated from, carried through to logs.
	ConfigID string `json:"config_id,omitempty"`

	// Owner is the principal performing the install.
	Owner string `json:"owner,omitempty"`

	// Rules is the rule set to install.
	Rules []RuleInstall `json:"rules"`
}

// InstallResult reports a completed install.
type InstallResult struct {
	// Installed counts rules written across all tiers.
	Installed int `json:"installed"`

	// Replaced counts the agent's prior rules removed by the install.
	Replaced int `json:"replaced"`

	// RuleIDs lists the installed rule IDs in request order.
	RuleIDs []string `json:"rule_ids"`
}

// RemoveOutcome is the result of a single-rule removal.
type RemoveOutcome string

const (
	// OutcomeRemoved means the rule existed, belonged to the caller's
	// agent, and was removed from every tier.
	OutcomeRemoved RemoveOutcome = "removed"

	// OutcomeNotFound means no rule with that ID is installed.
	OutcomeNotFound RemoveOutcome = "not_found"

	// OutcomeForbidden means the rule exists but belongs to a different
	// agent.
	OutcomeForbidden RemoveOutcome = "forbidden"
)

// StatsReport aggregates storage and refresh counters for operators.
type StatsReport struct {
	Store   store.Stats   `json:"store"`
	Refresh refresh.Stats `json:"refresh"`
}

// PersistenceError marks a failure that happened after request
// validation, while writing to the storage tiers. Callers can use it to
// distinguish a bad request from a storage fault.
type PersistenceError struct {
	Err error
}

// Error returns the underlying error message.
func (e *PersistenceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error { return e.Err }

// record converts the install payload into a rule record. The caller
// assigns the ID and timestamps.
func (ri *RuleInstall) record(agentID string) (*rules.Record, error) {
	var family rules.FamilyParams
	switch ri.Family {
	case rules.FamilyToolWhitelist:
		family = rules.ToolWhitelistParams{Tools: ri.Tools}
	case rules.FamilyDesignBoundary:
		if ri.Boundary == nil {
			return nil, fmt.Errorf("rule %q: design_boundary rules require a boundary payload", ri.ID)
		}
		family = *ri.Boundary
	default:
		return nil, fmt.Errorf("rule %q: unknown family %q", ri.ID, ri.Family)
	}

	enabled := true
	if ri.Enabled != nil {
		enabled = *ri.Enabled
	}

	return &rules.Record{
		ID:       ri.ID,
		Name:     ri.Name,
		FamilyID: ri.Family,
		Layer:    ri.Layer,
		AgentID:  agentID,
		Priority: ri.Priority,
		Enabled:  enabled,
		Params: rules.Params{
			Thresholds:      ri.Thresholds,
			Weights:         ri.Weights,
			Mode:            ri.Mode,
			GlobalThreshold: ri.GlobalThreshold,
			Family:          family,
		},
	}, nil
}
