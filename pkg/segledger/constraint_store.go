package segledger

import (
	"fmt"
	"math"
)

// constraintRecord is one (pair, constraint id) requirement together with
// where it is currently posted.
type constraintRecord struct {
	key      ConstraintKey
	priority float64

	// Requested bounds and stability in canonical pair direction.
	min, max       float64
	hasMin, hasMax bool
	stability      Stability

	groups map[GroupName]struct{}

	// clone is the variable this constraint's range was moved to after a
	// conflict on the pair's main variable, or NoVariable. Other
	// constraints of the pair may share it.
	clone VariableID

	// What is posted, in variable units.
	rangeHost                  VariableID
	postedMin, postedMax       float64
	postedHasMin, postedHasMax bool
	stabHost                   VariableID
	postedStability            Stability

	// footprint is the set of (variable, group) slots this constraint
	// occupies in the or-group index.
	footprint map[groupSlot]struct{}
}

type groupSlot struct {
	v VariableID
	g GroupName
}

func newConstraintRecord(key ConstraintKey) *constraintRecord {
	return &constraintRecord{
		key:       key,
		clone:     NoVariable,
		rangeHost: NoVariable,
		stabHost:  NoVariable,
		footprint: make(map[groupSlot]struct{}),
	}
}

func (c *constraintRecord) grouped() bool {
	return len(c.groups) > 0
}

// resolvedBounds is a constraint's range in canonical pair direction.
type resolvedBounds struct {
	min, max       float64
	hasMin, hasMax bool
	stability      Stability
}

// resolveBounds turns caller-direction extrema, preference and stability
// into canonical pair direction. dir is +1 when the caller's point order
// is canonical.
func resolveBounds(spec ConstraintSpec, dir int) resolvedBounds {
	var r resolvedBounds
	e1, ok1 := spec.Extremum1.Value()
	e2, ok2 := spec.Extremum2.Value()
	switch {
	case ok1 && ok2:
		r.min, r.max = math.Min(e1, e2), math.Max(e1, e2)
		r.hasMin, r.hasMax = true, true
	case ok1:
		r.min, r.hasMin = e1, true
	case ok2:
		r.max, r.hasMax = e2, true
	}

	switch spec.Preference {
	case PreferenceMin:
		// Snap to zero, or to the bound that keeps zero out of reach.
		target := 0.0
		if r.hasMin && r.min > 0 {
			target = r.min
		} else if r.hasMax && r.max < 0 {
			target = r.max
		}
		r.min, r.max = target, target
		r.hasMin, r.hasMax = true, true
	case PreferenceMax:
		// An explicit maximum is reused as the minimum; otherwise the
		// minimum becomes the +Inf sentinel, which only biases priority.
		if r.hasMax {
			r.min = r.max
		} else {
			r.min = math.Inf(1)
		}
		r.hasMin = true
	}

	r.stability = spec.Stability
	if dir < 0 {
		r.min, r.max = -r.max, -r.min
		r.hasMin, r.hasMax = r.hasMax, r.hasMin
		r.stability = r.stability.Flip()
	}
	if !r.hasMin {
		r.min = 0
	}
	if !r.hasMax {
		r.max = 0
	}
	return r
}

// toVariable converts canonical bounds into variable units.
func toVariable(b resolvedBounds, ratio float64) (vmin, vmax float64, hasMin, hasMax bool) {
	if ratio < 0 {
		return b.max * ratio, b.min * ratio, b.hasMax, b.hasMin
	}
	return b.min * ratio, b.max * ratio, b.hasMin, b.hasMax
}

func (c *constraintRecord) bounds() resolvedBounds {
	return resolvedBounds{min: c.min, max: c.max, hasMin: c.hasMin, hasMax: c.hasMax, stability: c.stability}
}

func validateSpec(p1, p2 PointID, spec ConstraintSpec) error {
	if p1 == p2 {
		return fmt.Errorf("SetConstraint: %w: %q", ErrSamePoint, p1)
	}
	if math.IsNaN(spec.Priority) {
		return fmt.Errorf("SetConstraint: %w: NaN priority", ErrInvalidValue)
	}
	for _, e := range []Extremum{spec.Extremum1, spec.Extremum2} {
		if v, ok := e.Value(); ok && math.IsNaN(v) {
			return fmt.Errorf("SetConstraint: %w: NaN extremum", ErrInvalidValue)
		}
	}
	return nil
}

// SetConstraint registers or replaces the constraint id on the pair
// (p1, p2). Replacing is equivalent to removing the previous definition and
// adding the new one, but only the parts that changed are reposted.
//
// A spec with no extrema, no stability and no preference removes the
// constraint. An error is returned only for inputs rejected before any
// state is touched.
func (l *Ledger) SetConstraint(p1, p2 PointID, id ConstraintID, spec ConstraintSpec) error {
	if err := validateSpec(p1, p2, spec); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if spec.isEmpty() {
		if pair, ok := l.lookupPair(p1, p2); ok {
			if c, ok := pair.constraints[id]; ok {
				l.removeConstraintRecord(pair, c)
				l.settle()
			}
		}
		return nil
	}

	pv := l.eq.PairValue(p1, p2)
	pair := l.getPair(pv)
	b := resolveBounds(spec, pv.Dir)

	c, existed := pair.constraints[id]
	if !existed {
		c = newConstraintRecord(ConstraintKey{Pair: pair.id, ID: id})
		pair.constraints[id] = c
	}

	rangeChanged := !existed || b.hasMin != c.hasMin || b.hasMax != c.hasMax ||
		b.min != c.min || b.max != c.max
	stabilityChanged := !existed || b.stability != c.stability
	wasGrouped := c.grouped()
	priorityChanged := existed && spec.Priority != c.priority

	if rangeChanged {
		l.unpostRange(c)
	}
	if stabilityChanged {
		l.unpostStability(pair, c)
	}

	c.priority = spec.Priority
	c.min, c.max, c.hasMin, c.hasMax = b.min, b.max, b.hasMin, b.hasMax
	c.stability = b.stability

	l.syncGroups(c, descriptorGroups(spec.OrGroups))
	if priorityChanged || wasGrouped != c.grouped() {
		l.refreshMember(c)
	}

	if rangeChanged {
		l.postRange(pair, c)
	}
	if stabilityChanged {
		l.postStability(pair, c)
	}
	l.syncFootprint(c)
	l.settle()

	l.metrics.constraintSet()
	return nil
}

// RemoveConstraint deletes the constraint id from the pair (p1, p2): its
// range and stability postings, its or-group memberships, and any clone or
// pair record it leaves empty.
func (l *Ledger) RemoveConstraint(p1, p2 PointID, id ConstraintID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pair, ok := l.lookupPair(p1, p2)
	if !ok {
		return
	}
	c, ok := pair.constraints[id]
	if !ok {
		return
	}
	l.removeConstraintRecord(pair, c)
	l.settle()
}

// removeConstraintRecord unposts c and drops it from its pair. The caller
// settles.
func (l *Ledger) removeConstraintRecord(pair *pairEntry, c *constraintRecord) {
	l.unpostRange(c)
	l.unpostStability(pair, c)
	c.clone = NoVariable
	l.syncGroups(c, nil)
	l.syncFootprint(c)
	delete(pair.constraints, c.key.ID)
	l.touchedPairs[pair.id] = struct{}{}
	l.metrics.constraintRemoved()
}

// HasConstraint reports whether the pair (p1, p2) carries constraint id.
func (l *Ledger) HasConstraint(p1, p2 PointID, id ConstraintID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pair, ok := l.lookupPair(p1, p2)
	if !ok {
		return false
	}
	_, ok = pair.constraints[id]
	return ok
}

// Hosts returns the variables currently carrying the range and stability
// parts of constraint id on the pair (p1, p2).
func (l *Ledger) Hosts(p1, p2 PointID, id ConstraintID) (ConstraintHosts, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pair, ok := l.lookupPair(p1, p2)
	if !ok {
		return ConstraintHosts{Range: NoVariable, Stability: NoVariable}, false
	}
	c, ok := pair.constraints[id]
	if !ok {
		return ConstraintHosts{Range: NoVariable, Stability: NoVariable}, false
	}
	return ConstraintHosts{Range: c.rangeHost, Stability: c.stabHost}, true
}

// record returns the constraint behind key.
func (l *Ledger) record(key ConstraintKey) (*constraintRecord, bool) {
	pair, ok := l.pairs[key.Pair]
	if !ok {
		return nil, false
	}
	c, ok := pair.constraints[key.ID]
	return c, ok
}
