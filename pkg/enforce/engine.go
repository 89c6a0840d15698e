package enforce

import (
	"context"
	"log/slog"
	"time"

	"sentinel-hq/aegis/pkg/rules"
	"sentinel-hq/aegis/pkg/store"
	"sentinel-hq/aegis/pkg/vector"
)

// ruleEffect is what every current rule family does when an intent fails
// to match its anchors.
const ruleEffect = "deny"

// AuditHook receives one record per enforcement call. Implementations
// must not block; the engine calls the hook synchronously on the request
// path.
type AuditHook interface {
	RecordEnforcement(ctx context.Context, intent *Intent, result *Result)
}

// RuleSource resolves the rules and vectors enforcement evaluates. The
// storage coordinator is the production implementation.
type RuleSource interface {
	// QueryLayer returns a layer's enabled rules in evaluation order.
	QueryLayer(layer string) []*rules.Record

	// GetRuleAnchorsMarked resolves a rule's vector, marking its cache
	// entry evaluated.
	GetRuleAnchorsMarked(ctx context.Context, id string) (*vector.RuleVector, store.Tier, error)
}

// Engine evaluates intents against the installed rule set. It holds no
// per-call state; a single instance serves all concurrent callers.
type Engine struct {
	store  RuleSource
	audit  AuditHook
	logger *slog.Logger
}

// New creates an enforcement engine over the given rule source.
// audit may be nil, in which case no records are emitted.
func New(st RuleSource, audit AuditHook) *Engine {
	return &Engine{
		store:  st,
		audit:  audit,
		logger: slog.Default().With("component", "enforce"),
	}
}

// Enforce decides whether the intent is allowed. It never returns an
// error: every failure mode collapses to a Block with a reason.
func (e *Engine) Enforce(ctx context.Context, intent *Intent) *Result {
	start := time.Now()
	result := e.evaluate(ctx, intent)
	result.Duration = time.Since(start)

	if result.Blocked() {
		e.logger.Info("intent blocked",
			"layer", layerOf(intent),
			"reason", result.Reason,
			"rules_evaluated", result.RulesEvaluated,
			"short_circuited", result.ShortCircuited,
		)
	} else {
		e.logger.Debug("intent allowed",
			"layer", intent.Layer,
			"rules_evaluated", result.RulesEvaluated,
		)
	}

	if e.audit != nil {
		e.audit.RecordEnforcement(ctx, intent, result)
	}
	return result
}

func (e *Engine) evaluate(ctx context.Context, intent *Intent) *Result {
	if intent == nil || intent.Layer == "" {
		return blockResult(ReasonMissingLayer)
	}
	if intent.Vector == nil {
		return blockResult(ReasonMissingVector)
	}
	if err := intent.Vector.Validate(); err != nil {
		return blockResult(ReasonInvalidVector)
	}

	ordered := e.store.QueryLayer(intent.Layer)
	if len(ordered) == 0 {
		// An enforcement point with no rules must never default-allow.
		return blockResult(ReasonNoRules)
	}

	result := &Result{Decision: DecisionAllow}
	var simSums [vector.NumSlots]float64

	for _, rec := range ordered {
		ev := e.evaluateRule(ctx, intent, rec)
		result.Evidence = append(result.Evidence, ev)
		result.RulesEvaluated++
		for i := range simSums {
			simSums[i] += ev.Similarities[i]
		}

		if ev.Decision == DecisionBlock {
			result.Decision = DecisionBlock
			result.Reason = ev.Reason
			result.ShortCircuited = result.RulesEvaluated < len(ordered)
			break
		}
	}

	// Reported aggregate is the mean across evaluated rules. Pinned
	// policy; see the aggregation tests.
	for i := range simSums {
		result.SlotSimilarities[i] = simSums[i] / float64(result.RulesEvaluated)
	}
	return result
}

// evaluateRule scores the intent against one rule. Every failure mode
// contributes a Block for that rule.
func (e *Engine) evaluateRule(ctx context.Context, intent *Intent, rec *rules.Record) RuleEvidence {
	ev := RuleEvidence{
		RuleID:     rec.ID,
		RuleName:   rec.Name,
		Effect:     ruleEffect,
		Mode:       rec.Params.Mode,
		Thresholds: rec.Params.Thresholds,
	}

	rv, _, err := e.store.GetRuleAnchorsMarked(ctx, rec.ID)
	if err != nil {
		// Missing data is indistinguishable from a failing match.
		e.logger.Warn("rule vector unresolvable, contributing block",
			"rule_id", rec.ID,
			"layer", rec.Layer,
			"error", err,
		)
		ev.Decision = DecisionBlock
		ev.Reason = ReasonRuleVectorMissing
		return ev
	}

	cmp := vector.Compare(intent.Vector, rv,
		rec.Params.Thresholds, rec.Params.Weights, rec.Params.Mode, rec.Params.GlobalThreshold)
	ev.Similarities = cmp.Similarities

	if !cmp.Matched {
		ev.Decision = DecisionBlock
		ev.Reason = ReasonRuleMismatch
		if cmp.TriggeringSlot != vector.SlotInvalid {
			ev.TriggeringSlot = cmp.TriggeringSlot.String()
		}
		return ev
	}

	ev.Decision = DecisionAllow
	return ev
}

func blockResult(reason string) *Result {
	return &Result{Decision: DecisionBlock, Reason: reason}
}

func layerOf(intent *Intent) string {
	if intent == nil {
		return ""
	}
	return intent.Layer
}
