package segledger_test

import (
	"fmt"

	"github.com/gitrdm/segledger/pkg/segledger"
)

// ExampleLedger_SetConstraint shows a conflicting bound moving onto a clone
// variable and the clone being retired once the bound is removed.
func ExampleLedger_SetConstraint() {
	eq := segledger.NewMemoryEquations()
	ledger, err := segledger.NewLedger(eq, nil)
	if err != nil {
		fmt.Println(err)
		return
	}

	_ = ledger.SetConstraint("left", "right", "min-width", segledger.ConstraintSpec{
		Priority:  1,
		Extremum1: segledger.Bound(100),
	})
	_ = ledger.SetConstraint("left", "right", "max-width", segledger.ConstraintSpec{
		Priority:  2,
		Extremum2: segledger.Bound(80),
	})

	vars := ledger.PairVariables("left", "right")
	fmt.Println("variables:", len(vars))
	fmt.Println("main min:", ledger.GetMin(vars[0], true))
	fmt.Println("clone max:", ledger.GetMax(vars[1], true))

	ledger.RemoveConstraint("left", "right", "max-width")
	fmt.Println("clones left:", eq.CloneCount())

	// Output:
	// variables: 2
	// main min: 100
	// clone max: 80
	// clones left: 0
}

// ExampleLedger_AllowsMovement shows an or-group whose member on one
// variable is violated while another member elsewhere still holds.
func ExampleLedger_AllowsMovement() {
	eq := segledger.NewMemoryEquations()
	ledger, _ := segledger.NewLedger(eq, nil)

	fit := segledger.OrGroups("fit")
	_ = ledger.SetConstraint("a", "b", "near", segledger.ConstraintSpec{Priority: 1, Extremum1: segledger.Bound(5), OrGroups: fit})
	_ = ledger.SetConstraint("c", "d", "far", segledger.ConstraintSpec{Priority: 1, Extremum1: segledger.Bound(0), OrGroups: fit})

	x := ledger.PairVariables("a", "b")[0]
	y := ledger.PairVariables("c", "d")[0]

	fmt.Println(ledger.AllowsMovement(x, segledger.Down, 3))
	fmt.Println(ledger.OrGroupSatisfaction(x, 3, nil)["fit"])
	fmt.Println(ledger.OrGroupSatisfaction(y, 3, nil)["fit"])

	// Output:
	// [fit]
	// violated:5
	// ()
}

// ExampleLedger_PriorityForValue shows the priorities a solver sees when it
// probes a value below several minima.
func ExampleLedger_PriorityForValue() {
	eq := segledger.NewMemoryEquations()
	ledger, _ := segledger.NewLedger(eq, nil)

	_ = ledger.SetConstraint("a", "b", "soft", segledger.ConstraintSpec{Priority: 1, Extremum1: segledger.Bound(30)})
	_ = ledger.SetConstraint("a", "b", "hard", segledger.ConstraintSpec{Priority: 5, Extremum1: segledger.Bound(20)})

	v := ledger.PairVariables("a", "b")[0]
	p := ledger.PriorityForValue(v, 15, true)
	fmt.Println("violated priority:", p.Violated, "at", p.ViolatedValue)
	fmt.Println("next breakpoint:", ledger.NextValue(v, 30, true, nil))

	// Output:
	// violated priority: 5 at 20
	// next breakpoint: 20
}
