package segledger

import (
	"math"
	"slices"
	"sort"
)

// chainMember is one constraint's contribution to a chain node.
type chainMember struct {
	priority float64
	grouped  bool
}

// chainNode holds every constraint posting the same bound value on a
// variable. priority is the highest priority among members outside any
// or-group; grouped members only count toward their group's priority.
type chainNode struct {
	value     float64
	members   map[ConstraintKey]chainMember
	priority  float64
	ungrouped int
}

func (n *chainNode) aggregate() {
	n.priority = NoPriority
	n.ungrouped = 0
	for _, m := range n.members {
		if m.grouped {
			continue
		}
		n.ungrouped++
		if m.priority > n.priority {
			n.priority = m.priority
		}
	}
}

// chain is a sorted vector of nodes ordered from most to least restrictive:
// decreasing values for a min chain, increasing values for a max chain.
type chain struct {
	isMin bool
	nodes []chainNode
}

// before reports whether a is more restrictive than b.
func (c *chain) before(a, b float64) bool {
	if c.isMin {
		return a > b
	}
	return a < b
}

func (c *chain) search(value float64) (int, bool) {
	i := sort.Search(len(c.nodes), func(i int) bool {
		return !c.before(c.nodes[i].value, value)
	})
	return i, i < len(c.nodes) && c.nodes[i].value == value
}

func (c *chain) add(value float64, key ConstraintKey, m chainMember) {
	i, found := c.search(value)
	if !found {
		c.nodes = slices.Insert(c.nodes, i, chainNode{
			value:   value,
			members: make(map[ConstraintKey]chainMember, 1),
		})
	}
	n := &c.nodes[i]
	n.members[key] = m
	n.aggregate()
}

// remove drops key from the node at value, splicing the node out once it
// has no members left.
func (c *chain) remove(value float64, key ConstraintKey) bool {
	i, found := c.search(value)
	if !found {
		return false
	}
	n := &c.nodes[i]
	if _, ok := n.members[key]; !ok {
		return false
	}
	delete(n.members, key)
	if len(n.members) == 0 {
		c.nodes = slices.Delete(c.nodes, i, i+1)
		return true
	}
	n.aggregate()
	return true
}

func (c *chain) update(value float64, key ConstraintKey, m chainMember) bool {
	i, found := c.search(value)
	if !found {
		return false
	}
	n := &c.nodes[i]
	old, ok := n.members[key]
	if !ok || old == m {
		return false
	}
	n.members[key] = m
	n.aggregate()
	return true
}

// head returns the most restrictive value, skipping the infinite sentinels
// when ignoreInfinite is set.
func (c *chain) head(ignoreInfinite bool) (float64, bool) {
	for i := range c.nodes {
		if ignoreInfinite && math.IsInf(c.nodes[i].value, 0) {
			continue
		}
		return c.nodes[i].value, true
	}
	return 0, false
}

func (c *chain) snapshot() []ChainNode {
	out := make([]ChainNode, 0, len(c.nodes))
	for _, n := range c.nodes {
		ids := make([]ConstraintKey, 0, len(n.members))
		for k := range n.members {
			ids = append(ids, k)
		}
		sortKeys(ids)
		out = append(out, ChainNode{
			Value:    n.value,
			Priority: n.priority,
			IDNum:    len(n.members),
			IDs:      ids,
		})
	}
	return out
}

type stabilityMember struct {
	mode     Stability
	priority float64
	grouped  bool
}

// stabilityAggregate holds every stability constraint on a variable. They
// never conflict with one another, so they all share one record.
type stabilityAggregate struct {
	members  map[ConstraintKey]stabilityMember
	priority StabilityPriority
}

func (s *stabilityAggregate) aggregate() {
	s.priority = StabilityPriority{NonDecrease: NoPriority, NonIncrease: NoPriority}
	for _, m := range s.members {
		if m.grouped {
			continue
		}
		if m.mode.resistsDecrease() && m.priority > s.priority.NonDecrease {
			s.priority.NonDecrease = m.priority
		}
		if m.mode.resistsIncrease() && m.priority > s.priority.NonIncrease {
			s.priority.NonIncrease = m.priority
		}
	}
}

// ungroupedResisting reports whether a constraint outside every or-group
// resists movement in dir.
func (s *stabilityAggregate) ungroupedResisting(dir Direction) bool {
	for _, m := range s.members {
		if !m.grouped && resists(m.mode, dir) {
			return true
		}
	}
	return false
}

func resists(mode Stability, dir Direction) bool {
	if dir == Up {
		return mode.resistsIncrease()
	}
	return mode.resistsDecrease()
}

// variableEntry is the aggregated view of everything posted on a variable.
type variableEntry struct {
	id        VariableID
	min       chain
	max       chain
	stability *stabilityAggregate
}

func newVariableEntry(v VariableID) *variableEntry {
	return &variableEntry{
		id:  v,
		min: chain{isMin: true},
		max: chain{isMin: false},
	}
}

func (e *variableEntry) hasRange() bool {
	return len(e.min.nodes) > 0 || len(e.max.nodes) > 0
}

func (e *variableEntry) empty() bool {
	return !e.hasRange() && e.stability == nil
}

func (e *variableEntry) chain(isMin bool) *chain {
	if isMin {
		return &e.min
	}
	return &e.max
}

// entry returns the entry for v, creating it on first use.
func (l *Ledger) entry(v VariableID) *variableEntry {
	e, ok := l.vars[v]
	if !ok {
		e = newVariableEntry(v)
		l.vars[v] = e
		l.metrics.variableCreated()
	}
	return e
}

func (l *Ledger) addChainEntry(v VariableID, isMin bool, value float64, key ConstraintKey, m chainMember) {
	l.entry(v).chain(isMin).add(value, key, m)
	l.touch(v)
	l.changes.AddChange(v)
}

func (l *Ledger) removeChainEntry(v VariableID, isMin bool, value float64, key ConstraintKey) {
	e, ok := l.vars[v]
	if !ok {
		return
	}
	if e.chain(isMin).remove(value, key) {
		l.touch(v)
		l.changes.AddChange(v)
	}
}

func (l *Ledger) updateChainEntry(v VariableID, isMin bool, value float64, key ConstraintKey, m chainMember) {
	e, ok := l.vars[v]
	if !ok {
		return
	}
	if e.chain(isMin).update(value, key, m) {
		l.changes.AddChange(v)
	}
}

func (l *Ledger) addStabilityEntry(v VariableID, key ConstraintKey, m stabilityMember) {
	e := l.entry(v)
	if e.stability == nil {
		e.stability = &stabilityAggregate{members: make(map[ConstraintKey]stabilityMember)}
	}
	e.stability.members[key] = m
	e.stability.aggregate()
	l.touch(v)
	l.changes.AddChange(v)
}

func (l *Ledger) removeStabilityEntry(v VariableID, key ConstraintKey) {
	e, ok := l.vars[v]
	if !ok || e.stability == nil {
		return
	}
	if _, ok := e.stability.members[key]; !ok {
		return
	}
	delete(e.stability.members, key)
	if len(e.stability.members) == 0 {
		e.stability = nil
	} else {
		e.stability.aggregate()
	}
	l.touch(v)
	l.changes.AddChange(v)
}

func (l *Ledger) updateStabilityEntry(v VariableID, key ConstraintKey, m stabilityMember) {
	e, ok := l.vars[v]
	if !ok || e.stability == nil {
		return
	}
	old, ok := e.stability.members[key]
	if !ok || old == m {
		return
	}
	e.stability.members[key] = m
	e.stability.aggregate()
	l.changes.AddChange(v)
}

func (l *Ledger) touch(v VariableID) {
	l.touched[v] = struct{}{}
}

// retireEmptyVariables drops entries left empty by the current operation
// and hands retired clones back to the equation layer.
func (l *Ledger) retireEmptyVariables() {
	for v := range l.touched {
		e, ok := l.vars[v]
		if !ok || !e.empty() {
			continue
		}
		delete(l.vars, v)
		_, clone := l.cloneOrigin[v]
		delete(l.cloneOrigin, v)
		l.eq.DestroyIfClone(v)
		l.metrics.variableRetired(clone)
		if clone {
			l.logger.Debug("retired clone variable", "variable", int(v))
		}
	}
	clear(l.touched)
}

func sortKeys(keys []ConstraintKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Pair != keys[j].Pair {
			return keys[i].Pair < keys[j].Pair
		}
		return keys[i].ID < keys[j].ID
	})
}

func sortVariables(vs []VariableID) {
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
}
