package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sentinel-hq/aegis/pkg/enforce"
	"sentinel-hq/aegis/pkg/refresh"
	"sentinel-hq/aegis/pkg/store"
	"sentinel-hq/aegis/pkg/telemetry/metrics"
)

// Service is the operation boundary over the storage tiers, the
// enforcement engine, and the refresh loop.
type Service struct {
	store     *store.Coordinator
	engine    *enforce.Engine
	refresher *refresh.Refresher
	metrics   *metrics.Collector
	logger    *slog.Logger

	now func() time.Time
}

// New assembles the service. collector may be nil when metrics are
// disabled.
func New(st *store.Coordinator, engine *enforce.Engine, refresher *refresh.Refresher, collector *metrics.Collector) *Service {
	return &Service{
		store:     st,
		engine:    engine,
		refresher: refresher,
		metrics:   collector,
		logger:    slog.Default().With("component", "service"),
		now:       time.Now,
	}
}

// Enforce evaluates an intent against the installed rules. It never
// returns an error: any failure surfaces as a Block in the result.
func (s *Service) Enforce(ctx context.Context, intent *enforce.Intent) *enforce.Result {
	result := s.engine.Enforce(ctx, intent)

	if s.metrics != nil {
		layer := ""
		if intent != nil {
			layer = intent.Layer
		}
		s.metrics.RecordEnforcement(layer, string(result.Decision), result.Reason,
			result.Duration, result.RulesEvaluated, result.ShortCircuited)
	}

	return result
}

// InstallRules installs a complete rule set for an agent, replacing the
// agent's previously installed rules. Any persistence failure fails the
// whole call: rules installed by this call are unwound so the agent is
// never left with a partial set.
func (s *Service) InstallRules(ctx context.Context, req *InstallRequest) (*InstallResult, error) {
	if req == nil || req.AgentID == "" {
		return nil, fmt.Errorf("install request requires an agent id")
	}
	if len(req.Rules) == 0 {
		return nil, fmt.Errorf("install request for agent %s contains no rules", req.AgentID)
	}

	// Build and validate every record before touching storage, so a
	// malformed rule rejects the request without removing anything.
	now := s.now()
	batch := make([]store.Installation, 0, len(req.Rules))
	ids := make([]string, 0, len(req.Rules))
	for i := range req.Rules {
		ri := &req.Rules[i]
		if ri.ID == "" {
			ri.ID = uuid.NewString()
		}
		rec, err := ri.record(req.AgentID)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = now
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule in install request: %w", err)
		}
		if ri.Anchors == nil {
			return nil, fmt.Errorf("rule %s: anchors are required", rec.ID)
		}
		if err := ri.Anchors.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: invalid anchors: %w", rec.ID, err)
		}
		batch = append(batch, store.Installation{Record: rec, Anchors: ri.Anchors})
		ids = append(ids, rec.ID)
	}

	replaced, err := s.store.RemoveAgentRules(ctx, req.AgentID)
	if err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("removing prior rules for agent %s: %w", req.AgentID, err)}
	}

	// The batch shares one snapshot rewrite and unwinds itself on a
	// persistent-write failure, so no partial set survives.
	if err := s.store.AddRulesWithAnchors(ctx, batch); err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("installing rules for agent %s: %w", req.AgentID, err)}
	}

	if s.metrics != nil {
		s.metrics.RecordInstall(len(batch), replaced)
	}
	s.logger.Info("installed rule set",
		"agent_id", req.AgentID,
		"config_id", req.ConfigID,
		"owner", req.Owner,
		"installed", len(batch),
		"replaced", replaced)

	return &InstallResult{
		Installed: len(batch),
		Replaced:  replaced,
		RuleIDs:   ids,
	}, nil
}

// RemoveAgentRules removes every rule installed for an agent from all
// tiers and returns the number removed.
func (s *Service) RemoveAgentRules(ctx context.Context, agentID string) (int, error) {
	if agentID == "" {
		return 0, fmt.Errorf("agent id is required")
	}

	removed, err := s.store.RemoveAgentRules(ctx, agentID)
	if err != nil {
		return removed, err
	}

	s.logger.Info("removed agent rules", "agent_id", agentID, "removed", removed)
	return removed, nil
}

// RemovePolicy removes a single rule after verifying it belongs to the
// requesting agent. The outcome distinguishes a missing rule from one
// owned by another agent.
func (s *Service) RemovePolicy(ctx context.Context, agentID, ruleID string) (RemoveOutcome, error) {
	if agentID == "" || ruleID == "" {
		return OutcomeNotFound, fmt.Errorf("agent id and rule id are required")
	}

	rec, ok := s.store.GetRecord(ruleID)
	if !ok {
		return OutcomeNotFound, nil
	}
	if rec.AgentID != agentID {
		s.logger.Warn("rejected cross-agent rule removal",
			"agent_id", agentID,
			"rule_id", ruleID,
			"owner_agent_id", rec.AgentID)
		return OutcomeForbidden, nil
	}

	if _, err := s.store.RemoveRule(ctx, ruleID); err != nil {
		return OutcomeNotFound, fmt.Errorf("removing rule %s: %w", ruleID, err)
	}
	return OutcomeRemoved, nil
}

// RefreshRules reloads the fast tier from the snapshot file immediately
// and returns the refresh statistics.
func (s *Service) RefreshRules() (refresh.Stats, error) {
	count, duration, err := s.refresher.RefreshNow()

	if s.metrics != nil {
		s.metrics.RecordRefresh(err == nil, count, duration)
	}

	return s.refresher.Stats(), err
}

// GetRuleStats reports per-tier entry counts and refresh statistics,
// and pushes the current gauges to the metrics collector.
func (s *Service) GetRuleStats(ctx context.Context) StatsReport {
	st := s.store.Stats(ctx)

	if s.metrics != nil {
		s.metrics.UpdateTierEntries("fast", st.Cache.Entries)
		s.metrics.UpdateTierEntries("snapshot", st.SnapshotEntries)
		s.metrics.UpdateTierEntries("durable", int(st.DurableEntries))
	}

	return StatsReport{
		Store:   st,
		Refresh: s.refresher.Stats(),
	}
}

// Close stops the refresh loop and closes the storage tiers.
func (s *Service) Close() error {
	s.refresher.Stop()
	return s.store.Close()
}
