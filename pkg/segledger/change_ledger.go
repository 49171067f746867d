package segledger

import (
	"sort"
	"sync"
)

// ChangeLedger accumulates what changed since the solver last looked:
// variables whose effective constraints may differ, or-groups that lost
// their last member on a variable, and the previous priority of or-groups
// whose aggregate priority moved.
//
// Thread Safety: all methods are safe for concurrent use.
type ChangeLedger struct {
	mu              sync.Mutex
	variables       map[VariableID]struct{}
	groupRemovals   map[GroupName]map[VariableID]struct{}
	priorityChanges map[GroupName]float64
}

// NewChangeLedger creates an empty change ledger.
func NewChangeLedger() *ChangeLedger {
	return &ChangeLedger{
		variables:       make(map[VariableID]struct{}),
		groupRemovals:   make(map[GroupName]map[VariableID]struct{}),
		priorityChanges: make(map[GroupName]float64),
	}
}

// AddChange marks v as changed. Marking twice is the same as marking once.
func (c *ChangeLedger) AddChange(v VariableID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[v] = struct{}{}
}

// HasChanges reports whether any variable is marked.
func (c *ChangeLedger) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.variables) > 0
}

// DrainChanges returns the marked variables in ascending order and clears
// the set.
func (c *ChangeLedger) DrainChanges() []VariableID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]VariableID, 0, len(c.variables))
	for v := range c.variables {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	c.variables = make(map[VariableID]struct{})
	return out
}

// AddOrGroupRemoved records that group g no longer has a member on v.
func (c *ChangeLedger) AddOrGroupRemoved(g GroupName, v VariableID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vars, ok := c.groupRemovals[g]
	if !ok {
		vars = make(map[VariableID]struct{})
		c.groupRemovals[g] = vars
	}
	vars[v] = struct{}{}
}

// OrGroupRemovals returns, per group, the variables it left, sorted. The
// log is kept until ClearOrGroupChanges.
func (c *ChangeLedger) OrGroupRemovals() map[GroupName][]VariableID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[GroupName][]VariableID, len(c.groupRemovals))
	for g, vars := range c.groupRemovals {
		list := make([]VariableID, 0, len(vars))
		for v := range vars {
			list = append(list, v)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out[g] = list
	}
	return out
}

// ClearOrGroupChanges empties the or-group removal log.
func (c *ChangeLedger) ClearOrGroupChanges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupRemovals = make(map[GroupName]map[VariableID]struct{})
}

// RecordOrGroupPriorityChange logs the priority g had before it changed.
// Only the first change per drain cycle is kept, so the log always holds
// the priority the solver last saw.
func (c *ChangeLedger) RecordOrGroupPriorityChange(g GroupName, previous float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.priorityChanges[g]; !ok {
		c.priorityChanges[g] = previous
	}
}

// DrainOrGroupPriorityChanges returns the priority change log and clears
// it.
func (c *ChangeLedger) DrainOrGroupPriorityChanges() map[GroupName]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.priorityChanges
	c.priorityChanges = make(map[GroupName]float64)
	return out
}
