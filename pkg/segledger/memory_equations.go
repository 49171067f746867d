package segledger

import (
	"sort"
	"sync"
)

// MemoryEquations is an in-memory EquationLayer. It orders pair endpoints
// lexically, gives every new pair its own variable with ratio 1, and keeps
// clone bookkeeping so callers can verify that no clone outlives its use.
//
// MemoryEquations backs the command-line tool and the tests; production
// solvers supply their own layer.
type MemoryEquations struct {
	mu      sync.Mutex
	pairs   map[PairID]*memoryPair
	clones  map[VariableID]VariableID // clone -> origin
	next    VariableID
	changes map[PairID]PairChange
	order   []PairID
}

type memoryPair struct {
	points [2]PointID
	index  VariableID
	ratio  float64
}

// NewMemoryEquations creates an empty equation layer.
func NewMemoryEquations() *MemoryEquations {
	return &MemoryEquations{
		pairs:   make(map[PairID]*memoryPair),
		clones:  make(map[VariableID]VariableID),
		changes: make(map[PairID]PairChange),
	}
}

// CanonicalPair returns the pair id and orientation MemoryEquations uses for
// (p1, p2) without allocating anything.
func CanonicalPair(p1, p2 PointID) (PairID, [2]PointID, int) {
	if p2 < p1 {
		return PairID(string(p2) + ";" + string(p1)), [2]PointID{p2, p1}, -1
	}
	return PairID(string(p1) + ";" + string(p2)), [2]PointID{p1, p2}, 1
}

// PairValue implements EquationLayer.
func (m *MemoryEquations) PairValue(p1, p2 PointID) PairValue {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, points, dir := CanonicalPair(p1, p2)
	mp := m.pairLocked(id, points)
	return PairValue{ID: id, Points: points, Index: mp.index, Ratio: mp.ratio, Dir: dir}
}

func (m *MemoryEquations) pairLocked(id PairID, points [2]PointID) *memoryPair {
	mp, ok := m.pairs[id]
	if !ok {
		mp = &memoryPair{points: points, index: m.allocLocked(), ratio: 1}
		m.pairs[id] = mp
	}
	return mp
}

func (m *MemoryEquations) allocLocked() VariableID {
	v := m.next
	m.next++
	return v
}

// CreateClone implements EquationLayer.
func (m *MemoryEquations) CreateClone(origin VariableID) VariableID {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.allocLocked()
	m.clones[v] = origin
	return v
}

// DestroyIfClone implements EquationLayer.
func (m *MemoryEquations) DestroyIfClone(v VariableID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clones, v)
}

// IsClone reports whether v is a live clone.
func (m *MemoryEquations) IsClone(v VariableID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.clones[v]
	return ok
}

// CloneOrigin returns the variable a live clone was created from.
func (m *MemoryEquations) CloneOrigin(v VariableID) (VariableID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	origin, ok := m.clones[v]
	return origin, ok
}

// CloneCount returns the number of live clones.
func (m *MemoryEquations) CloneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clones)
}

// SetRatio changes the ratio of a pair, given in the (p1, p2) direction,
// and queues a change notification.
func (m *MemoryEquations) SetRatio(p1, p2 PointID, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, points, dir := CanonicalPair(p1, p2)
	mp := m.pairLocked(id, points)
	mp.ratio = ratio * float64(dir)
	m.recordLocked(id, mp)
}

// Renumber moves a pair onto a freshly allocated variable and queues a
// change notification.
func (m *MemoryEquations) Renumber(p1, p2 PointID) VariableID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, points, _ := CanonicalPair(p1, p2)
	mp := m.pairLocked(id, points)
	mp.index = m.allocLocked()
	m.recordLocked(id, mp)
	return mp.index
}

// Link makes pair (p1, p2) share the variable of pair (q1, q2). The offset
// of (p1, p2) equals ratio times the offset of (q1, q2).
func (m *MemoryEquations) Link(p1, p2, q1, q2 PointID, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tid, tpoints, tdir := CanonicalPair(q1, q2)
	target := m.pairLocked(tid, tpoints)

	id, points, dir := CanonicalPair(p1, p2)
	mp := m.pairLocked(id, points)
	mp.index = target.index
	// variable = target.ratio * canonical(q) and p = ratio * q, with both
	// offsets reoriented into their canonical frames.
	mp.ratio = target.ratio * float64(tdir) * float64(dir) / ratio
	m.recordLocked(id, mp)
}

func (m *MemoryEquations) recordLocked(id PairID, mp *memoryPair) {
	if _, ok := m.changes[id]; !ok {
		m.order = append(m.order, id)
	}
	m.changes[id] = PairChange{Pair: id, Index: mp.index, Ratio: mp.ratio}
}

// DrainPairChanges implements EquationLayer. Changes come back in the order
// their pairs were first touched, one entry per pair.
func (m *MemoryEquations) DrainPairChanges() []PairChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PairChange, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.changes[id])
	}
	m.order = nil
	m.changes = make(map[PairID]PairChange)
	return out
}

// Variables returns every variable currently assigned to a pair, sorted.
func (m *MemoryEquations) Variables() []VariableID {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[VariableID]struct{})
	for _, mp := range m.pairs {
		seen[mp.index] = struct{}{}
	}
	out := make([]VariableID, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
