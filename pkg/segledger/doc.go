// Package segledger provides a priority-based constraint ledger for the
// scalar offsets between pairs of named points.
//
// Each pair of points is backed by a variable owned by an external linear
// equation layer. Callers post constraints on pairs:
//   - Range constraints: a minimum and/or maximum offset
//   - Stability constraints: resistance to decrease, increase, or both
//   - Or-group membership: the constraint is one alternative of a disjunction
//
// The ledger aggregates these per variable into ordered min and max chains
// and a stability record, each value carrying the set of contributing
// constraints and the highest priority among those outside any or-group.
// A relaxation solver drains the change ledger once per cycle and queries
// bounds, priorities, breakpoints and movement resistance.
//
// Two constraints that cannot hold on the same variable (a minimum above
// an existing maximum, or any range next to a stability constraint) are
// never merged or dropped. The later one is re-homed onto a clone variable
// that the equation layer keeps equal to the original, and the clone is
// retired as soon as nothing is posted on it.
//
// Typical use:
//
//	eq := segledger.NewMemoryEquations()
//	ledger, _ := segledger.NewLedger(eq, nil)
//	_ = ledger.SetConstraint("left", "right", "width", segledger.ConstraintSpec{
//	    Priority:  1,
//	    Extremum1: segledger.Bound(10),
//	    Extremum2: segledger.Bound(20),
//	})
//	for _, v := range ledger.DrainChanges() {
//	    lo, hi := ledger.GetMin(v, true), ledger.GetMax(v, true)
//	    _, _ = lo, hi
//	}
package segledger
