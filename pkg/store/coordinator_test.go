package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"sentinel-hq/aegis/pkg/rules"
	"sentinel-hq/aegis/pkg/vector"
)

func testCoordinator(t *testing.T, cacheCapacity int) *Coordinator {
	t.Helper()
	dir := t.TempDir()
	c, err := NewCoordinator(Config{
		CacheCapacity: cacheCapacity,
		SnapshotPath:  filepath.Join(dir, "rules.snap"),
		DurablePath:   filepath.Join(dir, "rules.db"),
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testRecord(id, agent, layer string, priority int) *rules.Record {
	return &rules.Record{
		ID:        id,
		Name:      "rule " + id,
		FamilyID:  rules.FamilyToolWhitelist,
		Layer:     layer,
		AgentID:   agent,
		Priority:  priority,
		Enabled:   true,
		CreatedAt: time.Now(),
		Params: rules.Params{
			Thresholds: vector.Thresholds{0.8, 0.8, 0.8, 0.8},
			Weights:    vector.Weights{1, 1, 1, 1},
			Mode:       vector.ModeMin,
		},
	}
}

func testVector(rng *rand.Rand) *vector.RuleVector {
	rv := &vector.RuleVector{}
	for i := range rv.Slots {
		a := make(vector.Anchor, vector.SlotDim)
		for k := range a {
			a[k] = float32(rng.NormFloat64())
		}
		rv.Slots[i] = []vector.Anchor{a}
	}
	return rv
}

func TestAddRuleWritesAllTiers(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	c := testCoordinator(t, 10)

	rv := testVector(rng)
	if err := c.AddRuleWithAnchors(ctx, testRecord("r1", "a1", "L4", 50), rv); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}

	stats := c.Stats(ctx)
	if stats.Records != 1 {
		t.Errorf("Records = %d, want 1", stats.Records)
	}
	if stats.Cache.Entries != 1 {
		t.Errorf("Cache.Entries = %d, want 1", stats.Cache.Entries)
	}
	if stats.SnapshotEntries != 1 {
		t.Errorf("SnapshotEntries = %d, want 1", stats.SnapshotEntries)
	}
	if stats.DurableEntries != 1 {
		t.Errorf("DurableEntries = %d, want 1", stats.DurableEntries)
	}
}

func TestReadThroughTransparency(t *testing.T) {
	// The same rule must resolve bit-identically from the fast, snapshot,
	// and durable tiers, and a slow-tier hit must promote into the fast
	// tier so the next call is a fast hit.
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2))
	c := testCoordinator(t, 10)

	rv := testVector(rng)
	if err := c.AddRuleWithAnchors(ctx, testRecord("r1", "a1", "L4", 50), rv); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}

	// Fast hit.
	got, tier, err := c.GetRuleAnchors(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRuleAnchors: %v", err)
	}
	if tier != TierFast {
		t.Errorf("tier = %v, want fast", tier)
	}
	if !got.Equal(rv) {
		t.Error("fast-tier result is not bit-identical")
	}

	// Snapshot hit after the fast tier is cleared.
	c.fast.Clear()
	got, tier, err = c.GetRuleAnchors(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRuleAnchors after clear: %v", err)
	}
	if tier != TierSnapshot {
		t.Errorf("tier = %v, want snapshot", tier)
	}
	if !got.Equal(rv) {
		t.Error("snapshot-tier result is not bit-identical")
	}

	// Promotion idempotence: the follow-up call is served from fast.
	got, tier, err = c.GetRuleAnchors(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRuleAnchors after promotion: %v", err)
	}
	if tier != TierFast {
		t.Errorf("tier after promotion = %v, want fast", tier)
	}
	if !got.Equal(rv) {
		t.Error("promoted result is not bit-identical")
	}

	// Durable hit when fast and snapshot both miss.
	c.fast.Clear()
	if err := c.snap.Delete("r1"); err != nil {
		t.Fatalf("snapshot delete: %v", err)
	}
	got, tier, err = c.GetRuleAnchors(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRuleAnchors from durable: %v", err)
	}
	if tier != TierDurable {
		t.Errorf("tier = %v, want durable", tier)
	}
	if !got.Equal(rv) {
		t.Error("durable-tier result is not bit-identical")
	}

	if c.Stats(ctx).Promotions != 2 {
		t.Errorf("Promotions = %d, want 2", c.Stats(ctx).Promotions)
	}
}

func TestPromotionDoesNotDeleteSlowerCopy(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))
	c := testCoordinator(t, 10)

	if err := c.AddRuleWithAnchors(ctx, testRecord("r1", "a1", "L4", 50), testVector(rng)); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}

	c.fast.Clear()
	if _, _, err := c.GetRuleAnchors(ctx, "r1"); err != nil {
		t.Fatalf("GetRuleAnchors: %v", err)
	}

	if c.snap.Len() != 1 {
		t.Error("promotion removed the snapshot copy")
	}
	if n, _ := c.durable.Count(ctx); n != 1 {
		t.Error("promotion removed the durable copy")
	}
}

func TestLookupMissFailsClosed(t *testing.T) {
	ctx := context.Background()
	c := testCoordinator(t, 10)

	if _, _, err := c.GetRuleAnchors(ctx, "ghost"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("GetRuleAnchors(ghost) = %v, want ErrRuleNotFound", err)
	}
}

func TestRemoveRuleDeletesEverywhere(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(4))
	c := testCoordinator(t, 10)

	if err := c.AddRuleWithAnchors(ctx, testRecord("r1", "a1", "L4", 50), testVector(rng)); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}

	existed, err := c.RemoveRule(ctx, "r1")
	if err != nil {
		t.Fatalf("RemoveRule: %v", err)
	}
	if !existed {
		t.Error("RemoveRule reported the rule as absent")
	}

	stats := c.Stats(ctx)
	if stats.Records != 0 || stats.Cache.Entries != 0 || stats.SnapshotEntries != 0 || stats.DurableEntries != 0 {
		t.Errorf("tiers not empty after RemoveRule: %+v", stats)
	}
	if _, _, err := c.GetRuleAnchors(ctx, "r1"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("GetRuleAnchors after remove = %v, want ErrRuleNotFound", err)
	}
}

func TestRemoveAgentRules(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(5))
	c := testCoordinator(t, 10)

	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), "a1", "L4", i)
		if err := c.AddRuleWithAnchors(ctx, rec, testVector(rng)); err != nil {
			t.Fatalf("AddRuleWithAnchors: %v", err)
		}
	}
	if err := c.AddRuleWithAnchors(ctx, testRecord("other", "a2", "L4", 9), testVector(rng)); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}

	n, err := c.RemoveAgentRules(ctx, "a1")
	if err != nil {
		t.Fatalf("RemoveAgentRules: %v", err)
	}
	if n != 3 {
		t.Errorf("RemoveAgentRules = %d, want 3", n)
	}

	stats := c.Stats(ctx)
	if stats.Records != 1 || stats.SnapshotEntries != 1 || stats.DurableEntries != 1 {
		t.Errorf("unexpected tier counts after agent removal: %+v", stats)
	}
}

func TestRefreshFromSnapshot(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(6))
	c := testCoordinator(t, 10)

	for i := 0; i < 4; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), "a1", "L4", i)
		if err := c.AddRuleWithAnchors(ctx, rec, testVector(rng)); err != nil {
			t.Fatalf("AddRuleWithAnchors: %v", err)
		}
	}

	// Poison the fast tier; refresh must resynchronize it.
	c.fast.Clear()
	c.fast.Insert("stale", testVector(rng))

	n, _, err := c.RefreshFromSnapshot()
	if err != nil {
		t.Fatalf("RefreshFromSnapshot: %v", err)
	}
	if n != 4 {
		t.Errorf("RefreshFromSnapshot reloaded %d, want 4", n)
	}
	if c.fast.Len() != 4 {
		t.Errorf("fast tier has %d entries after refresh, want 4", c.fast.Len())
	}
	if _, ok := c.fast.Get("stale"); ok {
		t.Error("refresh kept a stale fast-tier entry")
	}
}

func TestHydrationOnReopen(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	dir := t.TempDir()
	cfg := Config{
		CacheCapacity: 10,
		SnapshotPath:  filepath.Join(dir, "rules.snap"),
		DurablePath:   filepath.Join(dir, "rules.db"),
	}

	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	rv := testVector(rng)
	if err := c.AddRuleWithAnchors(ctx, testRecord("r1", "a1", "L4", 50), rv); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}
	c.Close()

	reopened, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, tier, err := reopened.GetRuleAnchors(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRuleAnchors after reopen: %v", err)
	}
	if tier != TierFast {
		t.Errorf("tier = %v after hydration, want fast", tier)
	}
	if !got.Equal(rv) {
		t.Error("hydrated vector is not bit-identical")
	}
}

func TestInstallRollbackOnDurableFailure(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(8))
	c := testCoordinator(t, 10)

	// Closing the durable tier forces the upsert to fail mid-install.
	c.durable.Close()

	err := c.AddRuleWithAnchors(ctx, testRecord("r1", "a1", "L4", 50), testVector(rng))
	if err == nil {
		t.Fatal("AddRuleWithAnchors succeeded with a broken durable tier")
	}

	if _, ok := c.GetRecord("r1"); ok {
		t.Error("record survived a failed install")
	}
	if _, ok := c.fast.Get("r1"); ok {
		t.Error("fast-tier entry survived a failed install")
	}
	if c.snap.Len() != 0 {
		t.Error("snapshot entry survived a failed install")
	}
}

func TestBatchInstall(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(9))
	c := testCoordinator(t, 10)

	batch := make([]Installation, 0, 3)
	for i := 0; i < 3; i++ {
		batch = append(batch, Installation{
			Record:  testRecord(fmt.Sprintf("r%d", i), "a1", "L4", i),
			Anchors: testVector(rng),
		})
	}
	if err := c.AddRulesWithAnchors(ctx, batch); err != nil {
		t.Fatalf("AddRulesWithAnchors: %v", err)
	}

	if c.snap.Len() != 3 {
		t.Errorf("snapshot has %d entries, want 3", c.snap.Len())
	}
	for _, in := range batch {
		got, _, err := c.GetRuleAnchors(ctx, in.Record.ID)
		if err != nil {
			t.Fatalf("GetRuleAnchors(%q): %v", in.Record.ID, err)
		}
		if !got.Equal(in.Anchors) {
			t.Errorf("rule %q round-tripped a different vector", in.Record.ID)
		}
	}
}

func TestBatchInstallRejectsNilVector(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(10))
	c := testCoordinator(t, 10)

	batch := []Installation{
		{Record: testRecord("r0", "a1", "L4", 1), Anchors: testVector(rng)},
		{Record: testRecord("r1", "a1", "L4", 2), Anchors: nil},
	}
	if err := c.AddRulesWithAnchors(ctx, batch); err == nil {
		t.Fatal("AddRulesWithAnchors accepted a nil vector")
	}

	if _, ok := c.GetRecord("r0"); ok {
		t.Error("record from a rejected batch was installed")
	}
	if c.snap.Len() != 0 {
		t.Error("snapshot entry from a rejected batch was installed")
	}
}

func TestHydrationCappedAtCapacity(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))
	dir := t.TempDir()
	cfg := Config{
		CacheCapacity: 10,
		SnapshotPath:  filepath.Join(dir, "rules.snap"),
		DurablePath:   filepath.Join(dir, "rules.db"),
	}

	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	for i := 0; i < 8; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), "a1", "L4", i)
		if err := c.AddRuleWithAnchors(ctx, rec, testVector(rng)); err != nil {
			t.Fatalf("AddRuleWithAnchors: %v", err)
		}
	}
	c.Close()

	cfg.CacheCapacity = 5
	reopened, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	stats := reopened.fast.Stats()
	if stats.Entries != 5 {
		t.Errorf("fast tier hydrated %d entries, want capacity 5", stats.Entries)
	}
	if stats.EvictionRuns != 0 {
		t.Errorf("hydration ran %d evictions, want 0", stats.EvictionRuns)
	}

	// The smallest ids win, so the surviving subset is deterministic.
	if _, ok := reopened.fast.Get("r0"); !ok {
		t.Error("hydration skipped the smallest id")
	}
	if _, ok := reopened.fast.Get("r7"); ok {
		t.Error("hydration exceeded the cache capacity")
	}

	// Entries left out of the fast tier stay reachable through the
	// persistent tiers.
	if _, tier, err := reopened.GetRuleAnchors(ctx, "r7"); err != nil {
		t.Fatalf("GetRuleAnchors(r7): %v", err)
	} else if tier == TierFast {
		t.Error("uncached entry reported as a fast-tier hit")
	}
}

type tierObserver struct {
	lookups    map[string]int
	promotions map[string]int
	evicted    int
}

func newTierObserver() *tierObserver {
	return &tierObserver{lookups: make(map[string]int), promotions: make(map[string]int)}
}

func (o *tierObserver) RecordCacheLookup(tier string)   { o.lookups[tier]++ }
func (o *tierObserver) RecordPromotion(fromTier string) { o.promotions[fromTier]++ }
func (o *tierObserver) RecordEviction(evicted int)      { o.evicted += evicted }

func TestObserverReceivesTierActivity(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(12))
	dir := t.TempDir()
	cfg := Config{
		CacheCapacity: 10,
		SnapshotPath:  filepath.Join(dir, "rules.snap"),
		DurablePath:   filepath.Join(dir, "rules.db"),
	}

	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.AddRuleWithAnchors(ctx, testRecord("a", "a1", "L4", 1), testVector(rng)); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}
	if err := c.AddRuleWithAnchors(ctx, testRecord("b", "a1", "L4", 2), testVector(rng)); err != nil {
		t.Fatalf("AddRuleWithAnchors: %v", err)
	}
	c.Close()

	// A capacity of one hydrates only "a", so "b" must come off the
	// snapshot tier and its promotion evicts "a".
	obs := newTierObserver()
	cfg.CacheCapacity = 1
	cfg.Observer = obs
	reopened, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, tier, err := reopened.GetRuleAnchors(ctx, "a"); err != nil || tier != TierFast {
		t.Fatalf("GetRuleAnchors(a) = tier %v, err %v; want fast hit", tier, err)
	}
	if _, tier, err := reopened.GetRuleAnchors(ctx, "b"); err != nil || tier != TierSnapshot {
		t.Fatalf("GetRuleAnchors(b) = tier %v, err %v; want snapshot hit", tier, err)
	}
	if _, _, err := reopened.GetRuleAnchors(ctx, "missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("GetRuleAnchors(missing) = %v, want ErrRuleNotFound", err)
	}

	if got := obs.lookups["fast"]; got != 1 {
		t.Errorf("fast lookups = %d, want 1", got)
	}
	if got := obs.lookups["snapshot"]; got != 1 {
		t.Errorf("snapshot lookups = %d, want 1", got)
	}
	if got := obs.lookups["miss"]; got != 1 {
		t.Errorf("miss lookups = %d, want 1", got)
	}
	if got := obs.promotions["snapshot"]; got != 1 {
		t.Errorf("snapshot promotions = %d, want 1", got)
	}
	if obs.evicted != 1 {
		t.Errorf("evicted = %d, want 1", obs.evicted)
	}
}
