package segledger

import "math"

// GetMin returns the effective minimum of v, or -Inf when v has none.
// With ignoreInfinite the infinite sentinels are skipped.
func (l *Ledger) GetMin(v VariableID, ignoreInfinite bool) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getMin(v, ignoreInfinite)
}

func (l *Ledger) getMin(v VariableID, ignoreInfinite bool) float64 {
	if e, ok := l.vars[v]; ok {
		if head, ok := e.min.head(ignoreInfinite); ok {
			return head
		}
	}
	return math.Inf(-1)
}

// GetMax returns the effective maximum of v, or +Inf when v has none.
func (l *Ledger) GetMax(v VariableID, ignoreInfinite bool) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getMax(v, ignoreInfinite)
}

func (l *Ledger) getMax(v VariableID, ignoreInfinite bool) float64 {
	if e, ok := l.vars[v]; ok {
		if head, ok := e.max.head(ignoreInfinite); ok {
			return head
		}
	}
	return math.Inf(1)
}

// GetStability returns the aggregate stability priorities of v, or false
// when v carries no stability constraint.
func (l *Ledger) GetStability(v VariableID) (StabilityPriority, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.vars[v]
	if !ok || e.stability == nil {
		return StabilityPriority{NonDecrease: NoPriority, NonIncrease: NoPriority}, false
	}
	return e.stability.priority, true
}

// ValuePriority is the answer to PriorityForValue.
type ValuePriority struct {
	// AtValue is the priority of the node exactly at the probed value,
	// NoPriority when there is none.
	AtValue float64

	// Violated is the highest priority among nodes the value violates,
	// NoPriority when it violates none.
	Violated float64

	// ViolatedValue is the most extreme violated value at priority
	// Violated. It equals the probed value when nothing is violated.
	ViolatedValue float64
}

// PriorityForValue reports the priorities around value on the min chain
// (isMin) or the max chain of v. A min node is violated by values below
// it, a max node by values above it. Nodes whose members all belong to
// or-groups carry no aggregate priority and are not counted.
func (l *Ledger) PriorityForValue(v VariableID, value float64, isMin bool) ValuePriority {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := ValuePriority{AtValue: NoPriority, Violated: NoPriority, ViolatedValue: value}
	e, ok := l.vars[v]
	if !ok {
		return out
	}
	c := e.chain(isMin)
	violated := false
	for i := range c.nodes {
		n := &c.nodes[i]
		if n.value == value {
			out.AtValue = n.priority
			break
		}
		if !c.before(n.value, value) {
			break
		}
		if n.ungrouped == 0 {
			continue
		}
		// Nodes are visited from most to least extreme, so the first
		// node at a priority is the most extreme one.
		if !violated || n.priority > out.Violated {
			out.Violated = n.priority
			out.ViolatedValue = n.value
			violated = true
		}
	}
	return out
}

// StableValueSource supplies the value a stability variable currently
// rests at. The relaxation solver owns it.
type StableValueSource interface {
	StableValue(v VariableID) (float64, bool)
}

// StableValues is a map-backed StableValueSource.
type StableValues map[VariableID]float64

// StableValue implements StableValueSource.
func (s StableValues) StableValue(v VariableID) (float64, bool) {
	value, ok := s[v]
	return value, ok
}

// NextValue returns the next breakpoint strictly beyond value: below it
// on the min chain when isMin, above it on the max chain otherwise. On a
// variable carrying stability the stable value from src is a breakpoint
// too. With no breakpoint left the result is -Inf or +Inf.
func (l *Ledger) NextValue(v VariableID, value float64, isMin bool, src StableValueSource) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	next := math.Inf(1)
	if isMin {
		next = math.Inf(-1)
	}
	e, ok := l.vars[v]
	if !ok {
		return next
	}

	c := e.chain(isMin)
	i, found := c.search(value)
	if found {
		i++
	}
	if i < len(c.nodes) {
		next = c.nodes[i].value
	}

	if e.stability != nil && src != nil {
		if s, ok := src.StableValue(v); ok {
			if isMin && s < value && s > next {
				next = s
			}
			if !isMin && s > value && s < next {
				next = s
			}
		}
	}
	return next
}

// PreferredValue clamps current into the finite effective range of v, or
// returns 0 when v carries no constraint.
func (l *Ledger) PreferredValue(v VariableID, current float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.vars[v]; !ok {
		return 0
	}
	lo, hi := l.getMin(v, true), l.getMax(v, true)
	if current < lo {
		return lo
	}
	if current > hi {
		return hi
	}
	return current
}

// VariableHasConstraint reports whether anything is posted on v.
func (l *Ledger) VariableHasConstraint(v VariableID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.vars[v]
	return ok
}

// MinChain returns a snapshot of v's min chain, most restrictive first.
func (l *Ledger) MinChain(v VariableID) []ChainNode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.vars[v]; ok {
		return e.min.snapshot()
	}
	return nil
}

// MaxChain returns a snapshot of v's max chain, most restrictive first.
func (l *Ledger) MaxChain(v VariableID) []ChainNode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.vars[v]; ok {
		return e.max.snapshot()
	}
	return nil
}

// Variables returns every variable carrying a constraint, ascending.
func (l *Ledger) Variables() []VariableID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]VariableID, 0, len(l.vars))
	for v := range l.vars {
		out = append(out, v)
	}
	sortVariables(out)
	return out
}
