package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"sentinel-hq/aegis/pkg/rules"
	"sentinel-hq/aegis/pkg/store/cache"
	"sentinel-hq/aegis/pkg/store/durable"
	"sentinel-hq/aegis/pkg/store/snapshot"
	"sentinel-hq/aegis/pkg/vector"
)

// ErrRuleNotFound indicates a rule id missed on every storage tier.
var ErrRuleNotFound = errors.New("rule not found in any storage tier")

// Tier identifies the storage tier that served a lookup.
type Tier string

const (
	TierFast     Tier = "fast"
	TierSnapshot Tier = "snapshot"
	TierDurable  Tier = "durable"
)

// Observer receives tier activity as it happens: which tier served each
// lookup, fast-tier evictions, and promotions from the slower tiers.
// The method set matches the telemetry collector so it satisfies this
// interface directly. A nil observer disables reporting.
type Observer interface {
	RecordCacheLookup(tier string)
	RecordEviction(evicted int)
	RecordPromotion(fromTier string)
}

// Config configures the coordinator and its tiers.
type Config struct {
	// CacheCapacity bounds the fast tier. Zero means cache.DefaultCapacity.
	CacheCapacity int

	// SnapshotPath is the snapshot tier's file path.
	SnapshotPath string

	// DurablePath is the durable tier's database path.
	DurablePath string

	// Observer, when set, receives lookup, eviction, and promotion
	// activity from the tiers.
	Observer Observer
}

// Installation pairs a rule record with its anchor vector for install.
type Installation struct {
	Record  *rules.Record
	Anchors *vector.RuleVector
}

// Stats aggregates per-tier counters for GetRuleStats.
type Stats struct {
	Records         int         `json:"records"`
	Cache           cache.Stats `json:"cache"`
	SnapshotEntries int         `json:"snapshot_entries"`
	DurableEntries  int64       `json:"durable_entries"`
	Promotions      uint64      `json:"promotions"`
}

// Coordinator owns the rule-record tables and all three storage tiers.
// One explicit instance is constructed per process and injected into the
// enforcement engine and service; there are no package-level singletons.
type Coordinator struct {
	records  *rules.Table
	fast     *cache.Cache
	snap     *snapshot.Store
	durable  *durable.Store
	observer Observer
	logger   *slog.Logger

	promotions atomic.Uint64
}

// NewCoordinator opens the persistent tiers at the configured paths and
// hydrates the fast tier from the snapshot.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.SnapshotPath == "" {
		return nil, fmt.Errorf("snapshot path cannot be empty")
	}
	if cfg.DurablePath == "" {
		return nil, fmt.Errorf("durable path cannot be empty")
	}

	snap, err := snapshot.Open(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot tier: %w", err)
	}
	dur, err := durable.Open(cfg.DurablePath)
	if err != nil {
		return nil, fmt.Errorf("open durable tier: %w", err)
	}

	c := &Coordinator{
		records:  rules.NewTable(),
		fast:     cache.New(cfg.CacheCapacity),
		snap:     snap,
		durable:  dur,
		observer: cfg.Observer,
		logger:   slog.Default().With("component", "store.coordinator"),
	}
	if cfg.Observer != nil {
		c.fast.OnEvict(cfg.Observer.RecordEviction)
	}

	if n, err := c.hydrate(); err != nil {
		// Hydration failure is not fatal: lookups fall through to the
		// persistent tiers, and the next refresh retries.
		c.logger.Error("fast-tier hydration failed", "error", err)
	} else if n > 0 {
		c.logger.Info("fast tier hydrated from snapshot", "entries", n)
	}

	return c, nil
}

// hydrate fills the fast tier from the snapshot at startup, capped at
// the cache capacity so an oversized snapshot cannot churn the cache
// through evictions before the first request. When the snapshot holds
// more entries than fit, the lexicographically smallest ids win so the
// surviving subset is deterministic; the rest stay reachable through
// the persistent tiers.
func (c *Coordinator) hydrate() (int, error) {
	all, err := c.snap.LoadAll()
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit := c.fast.Capacity(); len(ids) > limit {
		ids = ids[:limit]
	}
	for _, id := range ids {
		c.fast.Insert(id, all[id])
	}
	return len(ids), nil
}

// AddRuleWithAnchors installs a single rule record and writes its vector
// through all three tiers. Equivalent to a one-element batch.
func (c *Coordinator) AddRuleWithAnchors(ctx context.Context, rec *rules.Record, rv *vector.RuleVector) error {
	return c.AddRulesWithAnchors(ctx, []Installation{{Record: rec, Anchors: rv}})
}

// AddRulesWithAnchors installs a batch of rule records and writes their
// vectors through the fast, snapshot, and durable tiers, in that order.
// The whole batch shares one snapshot rewrite. If a persistent write
// fails, earlier writes are rolled back and the whole call fails: a
// successful return guarantees every vector is recoverable from the
// durable tier alone.
func (c *Coordinator) AddRulesWithAnchors(ctx context.Context, batch []Installation) error {
	if len(batch) == 0 {
		return nil
	}
	for _, in := range batch {
		if in.Anchors == nil {
			return fmt.Errorf("rule %s: vector cannot be nil", in.Record.ID)
		}
		if err := in.Anchors.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", in.Record.ID, err)
		}
	}

	ids := make([]string, 0, len(batch))
	for _, in := range batch {
		if err := c.records.Put(in.Record); err != nil {
			for _, id := range ids {
				c.records.Remove(id)
			}
			return err
		}
		ids = append(ids, in.Record.ID)
	}

	// The fast tier owns its own copies so no tier aliases another.
	vectors := make(map[string]*vector.RuleVector, len(batch))
	for _, in := range batch {
		c.fast.Insert(in.Record.ID, in.Anchors.Clone())
		vectors[in.Record.ID] = in.Anchors
	}

	dropFastAndRecords := func() {
		for _, id := range ids {
			c.fast.Remove(id)
			c.records.Remove(id)
		}
	}

	if err := c.snap.PutAll(vectors); err != nil {
		dropFastAndRecords()
		return fmt.Errorf("snapshot write failed: %w", err)
	}

	for i, in := range batch {
		rec := in.Record
		meta := durable.Metadata{Layer: rec.Layer, FamilyID: string(rec.FamilyID), AgentID: rec.AgentID}
		if err := c.durable.Upsert(ctx, rec.ID, meta, in.Anchors); err != nil {
			dropFastAndRecords()
			if derr := c.snap.DeleteAll(ids); derr != nil {
				c.logger.Error("snapshot rollback failed", "rules", len(ids), "error", derr)
			}
			for _, done := range batch[:i] {
				if derr := c.durable.Remove(ctx, done.Record.ID); derr != nil {
					c.logger.Error("durable rollback failed", "rule_id", done.Record.ID, "error", derr)
				}
			}
			return fmt.Errorf("rule %s: durable write failed: %w", rec.ID, err)
		}
	}

	return nil
}

// GetRuleAnchors resolves a rule's vector through the tiers without
// touching cache eviction timestamps. Returns the tier that served the
// lookup.
func (c *Coordinator) GetRuleAnchors(ctx context.Context, id string) (*vector.RuleVector, Tier, error) {
	return c.lookup(ctx, id, false)
}

// GetRuleAnchorsMarked is the enforcement-path lookup: identical to
// GetRuleAnchors but refreshes the fast-tier entry's last-evaluated time
// so actively used rules resist eviction.
func (c *Coordinator) GetRuleAnchorsMarked(ctx context.Context, id string) (*vector.RuleVector, Tier, error) {
	return c.lookup(ctx, id, true)
}

func (c *Coordinator) lookup(ctx context.Context, id string, mark bool) (*vector.RuleVector, Tier, error) {
	var rv *vector.RuleVector
	var ok bool
	if mark {
		rv, ok = c.fast.GetAndMark(id)
	} else {
		rv, ok = c.fast.Get(id)
	}
	if ok {
		c.observeLookup(string(TierFast))
		return rv, TierFast, nil
	}

	if rv, err := c.snap.Get(id); err == nil {
		c.observeLookup(string(TierSnapshot))
		c.promote(id, rv, TierSnapshot)
		return rv, TierSnapshot, nil
	} else if !errors.Is(err, snapshot.ErrNotFound) {
		c.logger.Warn("snapshot read failed, falling through", "rule_id", id, "error", err)
	}

	if rv, err := c.durable.Get(ctx, id); err == nil {
		c.observeLookup(string(TierDurable))
		c.promote(id, rv, TierDurable)
		return rv, TierDurable, nil
	} else if !errors.Is(err, durable.ErrNotFound) {
		c.logger.Warn("durable read failed, falling through", "rule_id", id, "error", err)
	}

	c.observeLookup("miss")
	return nil, "", ErrRuleNotFound
}

func (c *Coordinator) observeLookup(tier string) {
	if c.observer != nil {
		c.observer.RecordCacheLookup(tier)
	}
}

// promote copies a vector found in a slower tier into the fast tier. The
// slower copy is left in place.
func (c *Coordinator) promote(id string, rv *vector.RuleVector, from Tier) {
	c.fast.Insert(id, rv.Clone())
	c.promotions.Add(1)
	if c.observer != nil {
		c.observer.RecordPromotion(string(from))
	}
}

// RemoveRule deletes a rule's vector from every tier and its owning
// record, reporting whether the record existed.
func (c *Coordinator) RemoveRule(ctx context.Context, id string) (bool, error) {
	existed := c.records.Remove(id)
	c.fast.Remove(id)

	var errs []error
	if err := c.snap.Delete(id); err != nil {
		errs = append(errs, err)
	}
	if err := c.durable.Remove(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return existed, fmt.Errorf("remove rule %s: %w", id, errors.Join(errs...))
	}
	return existed, nil
}

// RemoveAgentRules deletes every rule owned by the agent from all tiers
// and returns the number of rules removed.
func (c *Coordinator) RemoveAgentRules(ctx context.Context, agentID string) (int, error) {
	ids := c.records.RemoveByAgent(agentID)
	for _, id := range ids {
		c.fast.Remove(id)
	}

	var errs []error
	if err := c.snap.DeleteAll(ids); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.durable.RemoveByAgent(ctx, agentID); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return len(ids), fmt.Errorf("remove agent %s rules: %w", agentID, errors.Join(errs...))
	}
	return len(ids), nil
}

// RefreshFromSnapshot reloads the fast tier from the snapshot tier:
// clear, then reinsert within the cache's own capacity and eviction
// rules. A fast-tier miss during the clear window falls through to the
// persistent tiers, so concurrent enforcement stays correct.
func (c *Coordinator) RefreshFromSnapshot() (int, time.Duration, error) {
	start := time.Now()

	all, err := c.snap.LoadAll()
	if err != nil {
		return 0, time.Since(start), fmt.Errorf("refresh from snapshot: %w", err)
	}

	c.fast.Clear()
	for id, rv := range all {
		c.fast.Insert(id, rv)
	}
	return len(all), time.Since(start), nil
}

// GetRecord returns the rule record for an id.
func (c *Coordinator) GetRecord(id string) (*rules.Record, bool) {
	return c.records.Get(id)
}

// QueryLayer returns the enabled rules for a layer in evaluation order:
// priority descending, rule id ascending as the tie-break.
func (c *Coordinator) QueryLayer(layer string) []*rules.Record {
	return c.records.QueryLayer(layer)
}

// AgentRuleIDs returns the rule ids owned by an agent.
func (c *Coordinator) AgentRuleIDs(agentID string) []string {
	return c.records.AgentRuleIDs(agentID)
}

// SnapshotPath returns the snapshot tier's file path, for the refresh
// subsystem's file watcher.
func (c *Coordinator) SnapshotPath() string {
	return c.snap.Path()
}

// Stats returns per-tier counters.
func (c *Coordinator) Stats(ctx context.Context) Stats {
	durableCount, err := c.durable.Count(ctx)
	if err != nil {
		c.logger.Warn("durable count failed", "error", err)
		durableCount = -1
	}
	return Stats{
		Records:         c.records.Len(),
		Cache:           c.fast.Stats(),
		SnapshotEntries: c.snap.Len(),
		DurableEntries:  durableCount,
		Promotions:      c.promotions.Load(),
	}
}

// Close releases the snapshot tier's file handle and the durable tier's
// database handle.
func (c *Coordinator) Close() error {
	return errors.Join(c.snap.Close(), c.durable.Close())
}
