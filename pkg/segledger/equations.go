package segledger

// PairValue is the equation layer's answer for a point pair: the canonical
// pair id and orientation, and the variable that carries the pair's offset.
type PairValue struct {
	// ID is the canonical pair identifier, the same for (p1,p2) and (p2,p1).
	ID PairID

	// Points holds the pair's endpoints in canonical order.
	Points [2]PointID

	// Index is the variable carrying the offset.
	Index VariableID

	// Ratio converts an offset in canonical pair units into variable units.
	// A negative ratio reverses orientation.
	Ratio float64

	// Dir is +1 when the queried order is the canonical order, -1 otherwise.
	Dir int
}

// PairChange reports that the variable or ratio behind a pair changed.
// Index and Ratio carry the pair's current values.
type PairChange struct {
	Pair  PairID
	Index VariableID
	Ratio float64
}

// EquationLayer is the linear-equation layer the ledger consumes. It owns
// variable numbering and guarantees that a clone always carries the same
// solution value as its origin.
//
// The ledger never numbers variables itself and never asks for a clone
// unless it is about to post a constraint on it.
type EquationLayer interface {
	// PairValue returns the canonical record for an unordered point pair,
	// allocating a variable when the pair is new. The ledger calls it only
	// when posting a constraint; lookups of known pairs use its own index.
	PairValue(p1, p2 PointID) PairValue

	// CreateClone returns a new variable tied to origin by equality.
	CreateClone(origin VariableID) VariableID

	// DestroyIfClone retires v if it is a clone; a no-op otherwise.
	DestroyIfClone(v VariableID)

	// DrainPairChanges returns and clears the pending renumbering feed.
	DrainPairChanges() []PairChange
}
