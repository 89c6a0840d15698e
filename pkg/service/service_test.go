package service

import (
	"context"
	"path/filepath"
	"testing"

	"sentinel-hq/aegis/pkg/enforce"
	"sentinel-hq/aegis/pkg/refresh"
	"sentinel-hq/aegis/pkg/rules"
	"sentinel-hq/aegis/pkg/store"
	"sentinel-hq/aegis/pkg/vector"
)

// unit returns a SlotDim vector with a 1 in the given component.
func unit(component int) vector.Anchor {
	v := make(vector.Anchor, vector.SlotDim)
	v[component] = 1
	return v
}

// anchoredVector returns a rule vector anchored on unit(0) in all slots.
func anchoredVector() *vector.RuleVector {
	rv := &vector.RuleVector{}
	for i := range rv.Slots {
		rv.Slots[i] = []vector.Anchor{unit(0)}
	}
	return rv
}

// alignedIntent builds an intent whose every slot aligns with unit(0).
func alignedIntent(layer, agent string) *enforce.Intent {
	v := make(vector.IntentVector, 0, vector.IntentDim)
	for i := 0; i < vector.NumSlots; i++ {
		v = append(v, unit(0)...)
	}
	return &enforce.Intent{Layer: layer, AgentID: agent, Operation: "search", Vector: v}
}

func testService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	coord, err := store.NewCoordinator(store.Config{
		CacheCapacity: 100,
		SnapshotPath:  filepath.Join(dir, "rules.snap"),
		DurablePath:   filepath.Join(dir, "rules.db"),
	})
	if err != nil {
		t.Fatalf("creating coordinator: %v", err)
	}

	engine := enforce.New(coord, nil)
	refresher := refresh.New(coord, refresh.Config{Enabled: false})
	svc := New(coord, engine, refresher, nil)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func installOf(agent string, rs ...RuleInstall) *InstallRequest {
	return &InstallRequest{
		AgentID:  agent,
		ConfigID: "cfg-1",
		Owner:    "control-plane",
		Rules:    rs,
	}
}

func whitelistRule(id, layer string, threshold float64) RuleInstall {
	return RuleInstall{
		ID:         id,
		Name:       "rule " + id,
		Family:     rules.FamilyToolWhitelist,
		Layer:      layer,
		Priority:   10,
		Thresholds: vector.Thresholds{threshold, threshold, threshold, threshold},
		Weights:    vector.Weights{1, 1, 1, 1},
		Mode:       vector.ModeMin,
		Tools:      []string{"search"},
		Anchors:    anchoredVector(),
	}
}

func TestInstallAndEnforce(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	res, err := svc.InstallRules(ctx, installOf("a1", whitelistRule("r1", "layer1", 0.5)))
	if err != nil {
		t.Fatalf("InstallRules: %v", err)
	}
	if res.Installed != 1 || res.Replaced != 0 {
		t.Errorf("install result = %+v", res)
	}

	out := svc.Enforce(ctx, alignedIntent("layer1", "a1"))
	if out.Blocked() {
		t.Errorf("aligned intent blocked: %s", out.Reason)
	}
	if out.RulesEvaluated != 1 {
		t.Errorf("rules evaluated = %d, want 1", out.RulesEvaluated)
	}
}

func TestInstallAssignsIDs(t *testing.T) {
	svc := testService(t)

	r := whitelistRule("", "layer1", 0.5)
	res, err := svc.InstallRules(context.Background(), installOf("a1", r))
	if err != nil {
		t.Fatalf("InstallRules: %v", err)
	}
	if len(res.RuleIDs) != 1 || res.RuleIDs[0] == "" {
		t.Errorf("expected assigned rule id, got %v", res.RuleIDs)
	}
}

func TestInstallReplacesPriorSet(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, installOf("a1",
		whitelistRule("old1", "layer1", 0.5),
		whitelistRule("old2", "layer1", 0.5),
	)); err != nil {
		t.Fatalf("first install: %v", err)
	}

	res, err := svc.InstallRules(ctx, installOf("a1", whitelistRule("new1", "layer1", 0.5)))
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if res.Replaced != 2 {
		t.Errorf("replaced = %d, want 2", res.Replaced)
	}

	stats := svc.GetRuleStats(ctx)
	if stats.Store.Records != 1 {
		t.Errorf("records after replace = %d, want 1", stats.Store.Records)
	}
	if _, ok := svc.store.GetRecord("old1"); ok {
		t.Error("old1 still installed after replace")
	}
}

func TestInstallRejectsMalformedRuleBeforeMutating(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, installOf("a1", whitelistRule("keep", "layer1", 0.5))); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	bad := whitelistRule("bad", "layer1", 0.5)
	bad.Anchors = nil
	if _, err := svc.InstallRules(ctx, installOf("a1", bad)); err == nil {
		t.Fatal("expected error for missing anchors")
	}

	// The malformed request must not have removed the prior set.
	if _, ok := svc.store.GetRecord("keep"); !ok {
		t.Error("prior rule removed by rejected install")
	}
}

func TestInstallValidatesRequest(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, nil); err == nil {
		t.Error("expected error for nil request")
	}
	if _, err := svc.InstallRules(ctx, installOf("")); err == nil {
		t.Error("expected error for empty agent id")
	}
	if _, err := svc.InstallRules(ctx, installOf("a1")); err == nil {
		t.Error("expected error for empty rule set")
	}

	unknown := whitelistRule("r1", "layer1", 0.5)
	unknown.Family = "anomaly_detector"
	if _, err := svc.InstallRules(ctx, installOf("a1", unknown)); err == nil {
		t.Error("expected error for unknown family")
	}

	boundary := whitelistRule("r2", "layer1", 0.5)
	boundary.Family = rules.FamilyDesignBoundary
	boundary.Boundary = nil
	if _, err := svc.InstallRules(ctx, installOf("a1", boundary)); err == nil {
		t.Error("expected error for design_boundary without payload")
	}
}

func TestRemoveAgentRules(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, installOf("a1",
		whitelistRule("r1", "layer1", 0.5),
		whitelistRule("r2", "layer1", 0.5),
	)); err != nil {
		t.Fatalf("install: %v", err)
	}

	removed, err := svc.RemoveAgentRules(ctx, "a1")
	if err != nil {
		t.Fatalf("RemoveAgentRules: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	// Enforcement over the emptied layer fails closed.
	out := svc.Enforce(ctx, alignedIntent("layer1", "a1"))
	if !out.Blocked() || out.Reason != enforce.ReasonNoRules {
		t.Errorf("decision = %s reason = %s, want block/%s", out.Decision, out.Reason, enforce.ReasonNoRules)
	}
}

func TestRemovePolicyOutcomes(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, installOf("a1", whitelistRule("r1", "layer1", 0.5))); err != nil {
		t.Fatalf("install a1: %v", err)
	}
	if _, err := svc.InstallRules(ctx, installOf("a2", whitelistRule("r2", "layer1", 0.5))); err != nil {
		t.Fatalf("install a2: %v", err)
	}

	if outcome, err := svc.RemovePolicy(ctx, "a1", "nope"); err != nil || outcome != OutcomeNotFound {
		t.Errorf("missing rule: outcome=%s err=%v, want %s", outcome, err, OutcomeNotFound)
	}

	// r2 belongs to a2; a1 must not be able to remove it.
	if outcome, err := svc.RemovePolicy(ctx, "a1", "r2"); err != nil || outcome != OutcomeForbidden {
		t.Errorf("cross-agent removal: outcome=%s err=%v, want %s", outcome, err, OutcomeForbidden)
	}
	if _, ok := svc.store.GetRecord("r2"); !ok {
		t.Error("forbidden removal still deleted the rule")
	}

	if outcome, err := svc.RemovePolicy(ctx, "a1", "r1"); err != nil || outcome != OutcomeRemoved {
		t.Errorf("owned removal: outcome=%s err=%v, want %s", outcome, err, OutcomeRemoved)
	}
	if _, ok := svc.store.GetRecord("r1"); ok {
		t.Error("removed rule still installed")
	}
}

func TestRefreshRules(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, installOf("a1",
		whitelistRule("r1", "layer1", 0.5),
		whitelistRule("r2", "layer1", 0.5),
	)); err != nil {
		t.Fatalf("install: %v", err)
	}

	stats, err := svc.RefreshRules()
	if err != nil {
		t.Fatalf("RefreshRules: %v", err)
	}
	if stats.LastCount != 2 {
		t.Errorf("refresh count = %d, want 2", stats.LastCount)
	}
	if stats.TotalRefreshes != 1 {
		t.Errorf("total refreshes = %d, want 1", stats.TotalRefreshes)
	}
}

func TestGetRuleStats(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.InstallRules(ctx, installOf("a1", whitelistRule("r1", "layer1", 0.5))); err != nil {
		t.Fatalf("install: %v", err)
	}

	report := svc.GetRuleStats(ctx)
	if report.Store.Records != 1 {
		t.Errorf("records = %d, want 1", report.Store.Records)
	}
	if report.Store.Cache.Entries != 1 {
		t.Errorf("cache entries = %d, want 1", report.Store.Cache.Entries)
	}
	if report.Store.SnapshotEntries != 1 {
		t.Errorf("snapshot entries = %d, want 1", report.Store.SnapshotEntries)
	}
	if report.Store.DurableEntries != 1 {
		t.Errorf("durable entries = %d, want 1", report.Store.DurableEntries)
	}
}
