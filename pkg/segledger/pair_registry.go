package segledger

import (
	"fmt"
	"sort"
)

// pairEntry is the single shared record of an unordered point pair.
type pairEntry struct {
	id     PairID
	points [2]PointID
	index  VariableID
	ratio  float64

	constraints map[ConstraintID]*constraintRecord

	// stabilityHost carries every stability constraint of the pair: the
	// main variable when it had no range constraints at the time, a
	// stability clone otherwise.
	stabilityHost  VariableID
	stabilityCount int
}

// getPair returns the pair record for pv, creating it on first use.
func (l *Ledger) getPair(pv PairValue) *pairEntry {
	pair, ok := l.pairs[pv.ID]
	if !ok {
		pair = &pairEntry{
			id:            pv.ID,
			points:        pv.Points,
			index:         pv.Index,
			ratio:         pv.Ratio,
			constraints:   make(map[ConstraintID]*constraintRecord),
			stabilityHost: NoVariable,
		}
		l.pairs[pv.ID] = pair
		l.pairKeys[pointsKey(pv.Points[0], pv.Points[1])] = pv.ID
		l.metrics.pairCreated()
	}
	l.touchedPairs[pv.ID] = struct{}{}
	return pair
}

// pointsKey orders two points so (p1, p2) and (p2, p1) share a key.
func pointsKey(p1, p2 PointID) [2]PointID {
	if p2 < p1 {
		return [2]PointID{p2, p1}
	}
	return [2]PointID{p1, p2}
}

// lookupPair returns the existing record for (p1, p2). It never consults
// the equation layer, so looking up an unknown pair allocates nothing.
func (l *Ledger) lookupPair(p1, p2 PointID) (*pairEntry, bool) {
	id, ok := l.pairKeys[pointsKey(p1, p2)]
	if !ok {
		return nil, false
	}
	pair, ok := l.pairs[id]
	return pair, ok
}

// sortedConstraints returns the pair's constraints in id order so that
// replays are deterministic.
func (p *pairEntry) sortedConstraints() []*constraintRecord {
	out := make([]*constraintRecord, 0, len(p.constraints))
	for _, c := range p.constraints {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key.ID < out[j].key.ID })
	return out
}

// RemovePair removes every constraint on the pair (p1, p2) and discards the
// pair record.
func (l *Ledger) RemovePair(p1, p2 PointID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pair, ok := l.lookupPair(p1, p2)
	if !ok {
		return
	}
	for _, c := range pair.sortedConstraints() {
		l.removeConstraintRecord(pair, c)
	}
	l.settle()
}

// PairVariables returns the variables that currently carry constraints of
// the pair: the main variable first, then clones in ascending order.
func (l *Ledger) PairVariables(p1, p2 PointID) []VariableID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pair, ok := l.lookupPair(p1, p2)
	if !ok {
		return nil
	}
	seen := map[VariableID]struct{}{pair.index: {}}
	var clones []VariableID
	add := func(v VariableID) {
		if v == NoVariable {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		clones = append(clones, v)
	}
	for _, c := range pair.constraints {
		add(c.rangeHost)
		add(c.stabHost)
	}
	sort.Slice(clones, func(i, j int) bool { return clones[i] < clones[j] })
	return append([]VariableID{pair.index}, clones...)
}

// SyncEquations drains the equation layer's renumbering feed and re-homes
// every constraint of each changed pair, exactly as if it had been removed
// and registered again. It returns the number of pairs re-homed.
func (l *Ledger) SyncEquations() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ch := range l.eq.DrainPairChanges() {
		pair, ok := l.pairs[ch.Pair]
		if !ok || (pair.index == ch.Index && pair.ratio == ch.Ratio) {
			continue
		}
		l.rehomePair(pair, ch.Index, ch.Ratio)
		n++
	}
	return n
}

func (l *Ledger) rehomePair(pair *pairEntry, index VariableID, ratio float64) {
	l.logger.Debug("re-homing pair",
		"pair", string(pair.id),
		"from", int(pair.index),
		"to", int(index),
		"ratio", ratio,
	)

	constraints := pair.sortedConstraints()
	l.touchedPairs[pair.id] = struct{}{}
	// Footprints are diffed only after the repost: a group still present
	// on a variable must not be logged as removed from it.
	for _, c := range constraints {
		l.unpostRange(c)
		l.unpostStability(pair, c)
		c.clone = NoVariable
	}
	pair.stabilityHost = NoVariable
	l.retireEmptyVariables()

	pair.index = index
	pair.ratio = ratio
	for _, c := range constraints {
		l.postRange(pair, c)
		l.postStability(pair, c)
		l.syncFootprint(c)
	}
	l.settle()
	l.metrics.pairRehomed()
}

// String renders a pair for diagnostics.
func (p *pairEntry) String() string {
	return fmt.Sprintf("%s(%s,%s)@%d×%g", p.id, p.points[0], p.points[1], p.index, p.ratio)
}
