package segledger

import (
	"math"
	"sort"
)

// rangeConflicts reports whether posting [vmin, vmax] on v would contradict
// what v already carries. Any stability constraint conflicts with any range
// constraint; the infinite sentinels never take part in the comparison.
func (l *Ledger) rangeConflicts(v VariableID, vmin, vmax float64, hasMin, hasMax bool) bool {
	e, ok := l.vars[v]
	if !ok {
		return false
	}
	if e.stability != nil {
		return true
	}
	if hasMin && !math.IsInf(vmin, 0) {
		if head, ok := e.max.head(true); ok && head < vmin {
			return true
		}
	}
	if hasMax && !math.IsInf(vmax, 0) {
		if head, ok := e.min.head(true); ok && head > vmax {
			return true
		}
	}
	return false
}

// createClone asks the equation layer for a clone of origin.
func (l *Ledger) createClone(origin VariableID, kind string, key ConstraintKey) VariableID {
	clone := l.eq.CreateClone(origin)
	l.cloneOrigin[clone] = origin
	l.metrics.cloneCreated(kind)
	l.logger.Debug("created clone variable",
		"kind", kind,
		"pair", string(key.Pair),
		"constraint", string(key.ID),
		"variable", int(origin),
		"clone", int(clone),
	)
	return clone
}

// postRange posts c's range on the first of these that does not conflict
// with it: the clone c already uses, the pair's main variable, a range
// clone used by another constraint of the pair. When all conflict a new
// clone is created.
func (l *Ledger) postRange(pair *pairEntry, c *constraintRecord) {
	vmin, vmax, hasMin, hasMax := toVariable(c.bounds(), pair.ratio)
	if !hasMin && !hasMax {
		// Whatever clone held the old range is empty now and retires
		// when the operation settles.
		c.clone = NoVariable
		return
	}

	host := c.clone
	if host != NoVariable && l.rangeConflicts(host, vmin, vmax, hasMin, hasMax) {
		host = NoVariable
	}
	if host == NoVariable {
		host = l.rangeHostFor(pair, c, vmin, vmax, hasMin, hasMax)
	}
	c.clone = NoVariable
	if host != pair.index {
		c.clone = host
	}

	m := chainMember{priority: c.priority, grouped: c.grouped()}
	if hasMin {
		l.addChainEntry(host, true, vmin, c.key, m)
	}
	if hasMax {
		l.addChainEntry(host, false, vmax, c.key, m)
	}
	c.rangeHost = host
	c.postedMin, c.postedMax = vmin, vmax
	c.postedHasMin, c.postedHasMax = hasMin, hasMax
}

// rangeHostFor picks a host for a range that cannot stay where c had it.
func (l *Ledger) rangeHostFor(pair *pairEntry, c *constraintRecord, vmin, vmax float64, hasMin, hasMax bool) VariableID {
	if !l.rangeConflicts(pair.index, vmin, vmax, hasMin, hasMax) {
		return pair.index
	}
	for _, v := range pair.rangeClones(c) {
		if !l.rangeConflicts(v, vmin, vmax, hasMin, hasMax) {
			return v
		}
	}
	return l.createClone(pair.index, cloneKindRange, c.key)
}

// rangeClones returns, ascending, the range clones currently hosting other
// constraints of the pair.
func (p *pairEntry) rangeClones(except *constraintRecord) []VariableID {
	seen := make(map[VariableID]struct{})
	var out []VariableID
	for _, other := range p.constraints {
		if other == except || other.clone == NoVariable || other.rangeHost != other.clone {
			continue
		}
		if _, ok := seen[other.clone]; ok {
			continue
		}
		seen[other.clone] = struct{}{}
		out = append(out, other.clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// unpostRange removes c's range from its host. The clone, if any, is kept
// so a replacement range lands on the same variable.
func (l *Ledger) unpostRange(c *constraintRecord) {
	if c.rangeHost == NoVariable {
		return
	}
	if c.postedHasMin {
		l.removeChainEntry(c.rangeHost, true, c.postedMin, c.key)
	}
	if c.postedHasMax {
		l.removeChainEntry(c.rangeHost, false, c.postedMax, c.key)
	}
	c.rangeHost = NoVariable
	c.postedHasMin, c.postedHasMax = false, false
}

// stabilityHostFor returns the variable that carries the pair's stability
// constraints, choosing one if the pair has none yet.
func (l *Ledger) stabilityHostFor(pair *pairEntry, key ConstraintKey) VariableID {
	host := pair.stabilityHost
	if host != NoVariable {
		// A main variable left without stability during this operation
		// may have picked up a range since.
		if e, ok := l.vars[host]; host != pair.index || !ok || !e.hasRange() {
			return host
		}
	}
	if e, ok := l.vars[pair.index]; !ok || !e.hasRange() {
		host = pair.index
	} else {
		host = l.createClone(pair.index, cloneKindStability, key)
	}
	pair.stabilityHost = host
	return host
}

// postStability posts c's stability mode, in variable orientation, on the
// pair's stability host.
func (l *Ledger) postStability(pair *pairEntry, c *constraintRecord) {
	if c.stability == StabilityNone {
		return
	}
	mode := c.stability
	if pair.ratio < 0 {
		mode = mode.Flip()
	}
	host := l.stabilityHostFor(pair, c.key)
	l.addStabilityEntry(host, c.key, stabilityMember{mode: mode, priority: c.priority, grouped: c.grouped()})
	pair.stabilityCount++
	c.stabHost = host
	c.postedStability = mode
}

func (l *Ledger) unpostStability(pair *pairEntry, c *constraintRecord) {
	if c.stabHost == NoVariable {
		return
	}
	l.removeStabilityEntry(c.stabHost, c.key)
	pair.stabilityCount--
	l.touchedPairs[pair.id] = struct{}{}
	c.stabHost = NoVariable
	c.postedStability = StabilityNone
}

// refreshMember rewrites c's priority and or-group flag wherever c is
// posted.
func (l *Ledger) refreshMember(c *constraintRecord) {
	m := chainMember{priority: c.priority, grouped: c.grouped()}
	if c.rangeHost != NoVariable {
		if c.postedHasMin {
			l.updateChainEntry(c.rangeHost, true, c.postedMin, c.key, m)
		}
		if c.postedHasMax {
			l.updateChainEntry(c.rangeHost, false, c.postedMax, c.key, m)
		}
	}
	if c.stabHost != NoVariable {
		l.updateStabilityEntry(c.stabHost, c.key, stabilityMember{
			mode:     c.postedStability,
			priority: c.priority,
			grouped:  c.grouped(),
		})
	}
}

// IsClone reports whether v is a clone variable created by this ledger.
func (l *Ledger) IsClone(v VariableID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.cloneOrigin[v]
	return ok
}
