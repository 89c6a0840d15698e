package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"sentinel-hq/aegis/pkg/vector"
)

// DefaultCapacity is the fast tier's default entry limit.
const DefaultCapacity = 10000

// evictionFraction is the share of capacity removed per eviction run.
const evictionFraction = 0.10

// Entry is one cached rule vector with its bookkeeping timestamps.
// Invariant: LastEvaluatedAt >= LoadedAt.
type Entry struct {
	// Vector is the cached rule vector. Immutable; callers must not
	// modify it.
	Vector *vector.RuleVector

	// LoadedAt is when the entry was (re)inserted.
	LoadedAt time.Time

	// LastEvaluatedAt is when the entry was last used by enforcement.
	LastEvaluatedAt time.Time
}

// Stats is a point-in-time snapshot of the cache's counters.
type Stats struct {
	Entries        int    `json:"entries"`
	Capacity       int    `json:"capacity"`
	EvictionRuns   uint64 `json:"eviction_runs"`
	EntriesEvicted uint64 `json:"entries_evicted"`
}

// Cache is the capacity-bounded fast tier.
type Cache struct {
	mu             sync.RWMutex
	entries        map[string]*Entry
	capacity       int
	evictionRuns   uint64
	entriesEvicted uint64
	logger         *slog.Logger
	onEvict        func(evicted int)

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a cache bounded at the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*Entry, capacity),
		capacity: capacity,
		logger:   slog.Default().With("component", "store.cache"),
		now:      time.Now,
	}
}

// OnEvict registers a callback invoked after each eviction run with the
// batch size. Must be set before the cache sees concurrent traffic.
func (c *Cache) OnEvict(fn func(evicted int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Insert adds or replaces the vector for a rule id, refreshing both
// timestamps. If the id is new and the cache is at capacity, an eviction
// batch runs first.
func (c *Cache) Insert(id string, rv *vector.RuleVector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.entries[id]; ok {
		existing.Vector = rv
		existing.LoadedAt = now
		existing.LastEvaluatedAt = now
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}

	c.entries[id] = &Entry{Vector: rv, LoadedAt: now, LastEvaluatedAt: now}
}

// Get returns the vector for a rule id without touching its timestamps.
func (c *Cache) Get(id string) (*vector.RuleVector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.Vector, true
}

// GetAndMark returns the vector for a rule id and refreshes its
// last-evaluated time. Used exclusively by the enforcement path.
func (c *Cache) GetAndMark(id string) (*vector.RuleVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	e.LastEvaluatedAt = c.now()
	return e.Vector, true
}

// Remove deletes the entry for a rule id, reporting whether it existed.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	return true
}

// Clear removes every entry. Used by the refresh cycle before rehydrating
// from the snapshot tier.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*Entry, c.capacity)
	return n
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Capacity returns the configured entry limit.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats returns the cache's running counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:        len(c.entries),
		Capacity:       c.capacity,
		EvictionRuns:   c.evictionRuns,
		EntriesEvicted: c.entriesEvicted,
	}
}

// evictLocked removes the eviction batch: the max(1, 10% of capacity)
// entries with the oldest last-evaluated time, ids as tie-break so the
// choice is deterministic. Caller holds the write lock.
func (c *Cache) evictLocked() {
	batch := int(float64(c.capacity) * evictionFraction)
	if batch < 1 {
		batch = 1
	}
	if batch > len(c.entries) {
		batch = len(c.entries)
	}

	type victim struct {
		id   string
		when time.Time
	}
	victims := make([]victim, 0, len(c.entries))
	for id, e := range c.entries {
		victims = append(victims, victim{id: id, when: e.LastEvaluatedAt})
	}
	sort.Slice(victims, func(i, j int) bool {
		if !victims[i].when.Equal(victims[j].when) {
			return victims[i].when.Before(victims[j].when)
		}
		return victims[i].id < victims[j].id
	})

	for _, v := range victims[:batch] {
		delete(c.entries, v.id)
	}
	c.evictionRuns++
	c.entriesEvicted += uint64(batch)
	if c.onEvict != nil {
		c.onEvict(batch)
	}

	c.logger.Debug("evicted cache entries",
		"evicted", batch,
		"remaining", len(c.entries),
		"capacity", c.capacity,
	)
}
