package rules

import (
	"sort"
	"sync"
)

// Table owns installed rule records, indexed by id, layer, and agent.
// All methods are safe for concurrent use; reads take a shared lock so
// enforcement queries never contend with each other.
type Table struct {
	mu      sync.RWMutex
	byID    map[string]*Record
	byLayer map[string]map[string]*Record
	byAgent map[string]map[string]*Record
}

// NewTable creates an empty rule table.
func NewTable() *Table {
	return &Table{
		byID:    make(map[string]*Record),
		byLayer: make(map[string]map[string]*Record),
		byAgent: make(map[string]map[string]*Record),
	}
}

// Put installs or replaces a record. A record with an existing id is
// replaced in place, reindexing it if its layer or agent changed.
func (t *Table) Put(r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	rec := *r // table owns its copy

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.byID[rec.ID]; ok {
		t.unindexLocked(old)
	}
	t.byID[rec.ID] = &rec
	t.indexLocked(&rec)
	return nil
}

// Get returns a copy of the record with the given id.
func (t *Table) Get(id string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	out := *rec
	return &out, true
}

// Remove deletes the record with the given id, reporting whether it existed.
func (t *Table) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byID[id]
	if !ok {
		return false
	}
	t.unindexLocked(rec)
	delete(t.byID, id)
	return true
}

// RemoveByAgent deletes every record owned by the agent and returns the
// removed rule ids in deterministic order.
func (t *Table) RemoveByAgent(agentID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	owned := t.byAgent[agentID]
	if len(owned) == 0 {
		return nil
	}

	ids := make([]string, 0, len(owned))
	for id := range owned {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		t.unindexLocked(t.byID[id])
		delete(t.byID, id)
	}
	return ids
}

// QueryLayer returns copies of the enabled records for a layer, sorted by
// descending priority with an ascending id tie-break. The ordering is the
// enforcement evaluation order and must stay deterministic.
func (t *Table) QueryLayer(layer string) []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*Record
	for _, rec := range t.byLayer[layer] {
		if !rec.Enabled {
			continue
		}
		c := *rec
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AgentRuleIDs returns the ids of the agent's rules in deterministic order.
func (t *Table) AgentRuleIDs(agentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	owned := t.byAgent[agentID]
	ids := make([]string, 0, len(owned))
	for id := range owned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of installed records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

func (t *Table) indexLocked(rec *Record) {
	layer := t.byLayer[rec.Layer]
	if layer == nil {
		layer = make(map[string]*Record)
		t.byLayer[rec.Layer] = layer
	}
	layer[rec.ID] = rec

	agent := t.byAgent[rec.AgentID]
	if agent == nil {
		agent = make(map[string]*Record)
		t.byAgent[rec.AgentID] = agent
	}
	agent[rec.ID] = rec
}

func (t *Table) unindexLocked(rec *Record) {
	if layer := t.byLayer[rec.Layer]; layer != nil {
		delete(layer, rec.ID)
		if len(layer) == 0 {
			delete(t.byLayer, rec.Layer)
		}
	}
	if agent := t.byAgent[rec.AgentID]; agent != nil {
		delete(agent, rec.ID)
		if len(agent) == 0 {
			delete(t.byAgent, rec.AgentID)
		}
	}
}
