package segledger

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestLedger returns a ledger over a fresh MemoryEquations with logging
// discarded.
func newTestLedger(t *testing.T) (*Ledger, *MemoryEquations) {
	t.Helper()
	eq := NewMemoryEquations()
	l, err := NewLedger(eq, &Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	return l, eq
}

func minSpec(priority, v float64) ConstraintSpec {
	return ConstraintSpec{Priority: priority, Extremum1: Bound(v)}
}

func maxSpec(priority, v float64) ConstraintSpec {
	return ConstraintSpec{Priority: priority, Extremum2: Bound(v)}
}

func rangeSpec(priority, lo, hi float64) ConstraintSpec {
	return ConstraintSpec{Priority: priority, Extremum1: Bound(lo), Extremum2: Bound(hi)}
}

func mustSet(t *testing.T, l *Ledger, p1, p2 PointID, id ConstraintID, spec ConstraintSpec) {
	t.Helper()
	require.NoError(t, l.SetConstraint(p1, p2, id, spec))
}

func mainVariable(eq *MemoryEquations, p1, p2 PointID) VariableID {
	return eq.PairValue(p1, p2).Index
}
