package cache

import (
	"fmt"
	"testing"
	"time"

	"sentinel-hq/aegis/pkg/vector"
)

func testVector(seed float32) *vector.RuleVector {
	a := make(vector.Anchor, vector.SlotDim)
	a[0] = seed
	rv := &vector.RuleVector{}
	rv.Slots[vector.SlotAction] = []vector.Anchor{a}
	return rv
}

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) next() time.Time {
	f.t = f.t.Add(time.Millisecond)
	return f.t
}

func newTestCache(capacity int) (*Cache, *fakeClock) {
	c := New(capacity)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c.now = clock.next
	return c, clock
}

func TestInsertAndGet(t *testing.T) {
	c, _ := newTestCache(10)

	rv := testVector(1)
	c.Insert("r1", rv)

	got, ok := c.Get("r1")
	if !ok {
		t.Fatal("Get(r1) missed after Insert")
	}
	if !got.Equal(rv) {
		t.Error("Get(r1) returned a different vector")
	}
	if _, ok := c.Get("absent"); ok {
		t.Error("Get(absent) hit")
	}
}

func TestInsertUpdatesInPlace(t *testing.T) {
	c, _ := newTestCache(10)

	c.Insert("r1", testVector(1))
	updated := testVector(2)
	c.Insert("r1", updated)

	if c.Len() != 1 {
		t.Errorf("Len = %d after update, want 1", c.Len())
	}
	got, _ := c.Get("r1")
	if !got.Equal(updated) {
		t.Error("Get(r1) did not return the updated vector")
	}
}

func TestCapacityScenario(t *testing.T) {
	// Capacity 10, insert 11 distinct ids with no reads between: exactly
	// one eviction run evicting exactly one entry, the oldest by load
	// order, final size 10.
	c, _ := newTestCache(10)

	for i := 0; i < 11; i++ {
		c.Insert(fmt.Sprintf("r%02d", i), testVector(float32(i)))
	}

	stats := c.Stats()
	if stats.Entries != 10 {
		t.Errorf("Entries = %d, want 10", stats.Entries)
	}
	if stats.EvictionRuns != 1 {
		t.Errorf("EvictionRuns = %d, want 1", stats.EvictionRuns)
	}
	if stats.EntriesEvicted != 1 {
		t.Errorf("EntriesEvicted = %d, want 1", stats.EntriesEvicted)
	}
	if _, ok := c.Get("r00"); ok {
		t.Error("oldest entry r00 survived eviction")
	}
	if _, ok := c.Get("r01"); !ok {
		t.Error("second-oldest entry r01 was evicted")
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	c, _ := newTestCache(50)

	for i := 0; i < 500; i++ {
		c.Insert(fmt.Sprintf("r%03d", i), testVector(float32(i)))
		if c.Len() > 50 {
			t.Fatalf("Len = %d exceeds capacity 50 after insert %d", c.Len(), i)
		}
	}
}

func TestMarkedEntriesResistEviction(t *testing.T) {
	// Fill the cache, mark one old entry as evaluated, then force an
	// eviction. The marked entry must survive while 10% of strictly
	// older entries are evicted.
	c, _ := newTestCache(100)

	for i := 0; i < 100; i++ {
		c.Insert(fmt.Sprintf("r%03d", i), testVector(float32(i)))
	}

	if _, ok := c.GetAndMark("r000"); !ok {
		t.Fatal("GetAndMark(r000) missed")
	}

	c.Insert("overflow", testVector(999))

	stats := c.Stats()
	if stats.EntriesEvicted != 10 {
		t.Fatalf("EntriesEvicted = %d, want 10", stats.EntriesEvicted)
	}
	if _, ok := c.Get("r000"); !ok {
		t.Error("marked entry r000 was evicted ahead of older entries")
	}
	// The ten oldest unmarked entries are the victims.
	for i := 1; i <= 10; i++ {
		if _, ok := c.Get(fmt.Sprintf("r%03d", i)); ok {
			t.Errorf("r%03d survived, expected eviction", i)
		}
	}
}

func TestEvictionTieBreakIsDeterministic(t *testing.T) {
	c := New(4)
	fixed := time.Unix(1700000000, 0)
	c.now = func() time.Time { return fixed }

	for _, id := range []string{"d", "b", "c", "a"} {
		c.Insert(id, testVector(1))
	}
	c.Insert("e", testVector(2))

	// All timestamps equal, so the id tie-break evicts "a".
	if _, ok := c.Get("a"); ok {
		t.Error(`tie-break should have evicted "a"`)
	}
	for _, id := range []string{"b", "c", "d", "e"} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("entry %q unexpectedly evicted", id)
		}
	}
}

func TestGetDoesNotMark(t *testing.T) {
	c, _ := newTestCache(2)

	c.Insert("old", testVector(1))
	c.Insert("new", testVector(2))

	// Plain Get must not refresh the timestamp, so "old" stays oldest.
	if _, ok := c.Get("old"); !ok {
		t.Fatal("Get(old) missed")
	}
	c.Insert("extra", testVector(3))

	if _, ok := c.Get("old"); ok {
		t.Error("Get refreshed the entry's last-evaluated time")
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(10)
	for i := 0; i < 5; i++ {
		c.Insert(fmt.Sprintf("r%d", i), testVector(float32(i)))
	}

	if n := c.Clear(); n != 5 {
		t.Errorf("Clear = %d, want 5", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}
}

func TestRemove(t *testing.T) {
	c, _ := newTestCache(10)
	c.Insert("r1", testVector(1))

	if !c.Remove("r1") {
		t.Error("Remove(r1) = false, want true")
	}
	if c.Remove("r1") {
		t.Error("second Remove(r1) = true, want false")
	}
}

func TestOnEvictReportsBatchSize(t *testing.T) {
	c, _ := newTestCache(10)
	var reported int
	c.OnEvict(func(evicted int) { reported += evicted })

	for i := 0; i < 11; i++ {
		c.Insert(fmt.Sprintf("r%d", i), testVector(float32(i)))
	}

	// Capacity 10 evicts a batch of one on the eleventh insert.
	if reported != 1 {
		t.Errorf("callback reported %d evictions, want 1", reported)
	}
	if got := c.Stats().EntriesEvicted; got != uint64(reported) {
		t.Errorf("callback total %d disagrees with counter %d", reported, got)
	}
}
