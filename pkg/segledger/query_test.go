package segledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainLedger posts three minima and two maxima on the pair (a, b).
func chainLedger(t *testing.T) (*Ledger, VariableID) {
	t.Helper()
	l, eq := newTestLedger(t)
	mustSet(t, l, "a", "b", "m30", minSpec(1, 30))
	mustSet(t, l, "a", "b", "m20", minSpec(5, 20))
	mustSet(t, l, "a", "b", "m10", minSpec(3, 10))
	mustSet(t, l, "a", "b", "x50", maxSpec(2, 50))
	mustSet(t, l, "a", "b", "x60", maxSpec(2, 60))
	return l, mainVariable(eq, "a", "b")
}

func TestChainOrder(t *testing.T) {
	l, v := chainLedger(t)

	mins := l.MinChain(v)
	require.Len(t, mins, 3)
	assert.Equal(t, []float64{30, 20, 10}, []float64{mins[0].Value, mins[1].Value, mins[2].Value})
	assert.Equal(t, ChainNode{Value: 20, Priority: 5, IDNum: 1, IDs: []ConstraintKey{{Pair: "a;b", ID: "m20"}}}, mins[1])

	maxs := l.MaxChain(v)
	require.Len(t, maxs, 2)
	assert.Equal(t, 50.0, maxs[0].Value)
	assert.Equal(t, 60.0, maxs[1].Value)

	assert.Nil(t, l.MinChain(99))
	assert.Equal(t, []VariableID{v}, l.Variables())
}

func TestPriorityForValue(t *testing.T) {
	l, v := chainLedger(t)

	tests := []struct {
		name  string
		value float64
		isMin bool
		want  ValuePriority
	}{
		{
			name:  "between minima",
			value: 15,
			isMin: true,
			want:  ValuePriority{AtValue: NoPriority, Violated: 5, ViolatedValue: 20},
		},
		{
			name:  "on a minimum",
			value: 20,
			isMin: true,
			want:  ValuePriority{AtValue: 5, Violated: 1, ViolatedValue: 30},
		},
		{
			name:  "above every minimum",
			value: 40,
			isMin: true,
			want:  ValuePriority{AtValue: NoPriority, Violated: NoPriority, ViolatedValue: 40},
		},
		{
			name:  "below every minimum",
			value: 0,
			isMin: true,
			want:  ValuePriority{AtValue: NoPriority, Violated: 5, ViolatedValue: 20},
		},
		{
			name:  "equal priorities keep the most extreme maximum",
			value: 70,
			isMin: false,
			want:  ValuePriority{AtValue: NoPriority, Violated: 2, ViolatedValue: 50},
		},
		{
			name:  "on the first maximum",
			value: 50,
			isMin: false,
			want:  ValuePriority{AtValue: 2, Violated: NoPriority, ViolatedValue: 50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.PriorityForValue(v, tt.value, tt.isMin))
		})
	}
}

func TestPriorityForValueSkipsGroupedNodes(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "a", "b")
	mustSet(t, l, "a", "b", "g", ConstraintSpec{Priority: 9, Extremum1: Bound(30), OrGroups: OrGroups("g")})
	mustSet(t, l, "a", "b", "m", minSpec(2, 20))

	got := l.PriorityForValue(v, 10, true)
	assert.Equal(t, 2.0, got.Violated)
	assert.Equal(t, 20.0, got.ViolatedValue)
}

func TestNextValue(t *testing.T) {
	l, v := chainLedger(t)

	tests := []struct {
		name  string
		value float64
		isMin bool
		want  float64
	}{
		{name: "min between nodes", value: 25, isMin: true, want: 20},
		{name: "min on a node", value: 20, isMin: true, want: 10},
		{name: "min past the last node", value: 10, isMin: true, want: math.Inf(-1)},
		{name: "min above every node", value: 100, isMin: true, want: 30},
		{name: "max on a node", value: 50, isMin: false, want: 60},
		{name: "max past the last node", value: 60, isMin: false, want: math.Inf(1)},
		{name: "max below every node", value: 0, isMin: false, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.NextValue(v, tt.value, tt.isMin, nil))
		})
	}
}

func TestNextValueStableBreakpoint(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "e", "f")
	mustSet(t, l, "e", "f", "S", ConstraintSpec{Priority: 1, Stability: StabilityEquals})
	src := StableValues{v: 3}

	assert.Equal(t, 3.0, l.NextValue(v, 5, true, src))
	assert.Equal(t, math.Inf(-1), l.NextValue(v, 2, true, src))
	assert.Equal(t, 3.0, l.NextValue(v, 2, false, src))
	assert.Equal(t, math.Inf(1), l.NextValue(v, 5, false, src))
	assert.Equal(t, math.Inf(-1), l.NextValue(v, 5, true, nil))
	assert.Equal(t, math.Inf(1), l.NextValue(99, 5, false, src))
}

func TestPreferredValue(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "a", "b")
	mustSet(t, l, "a", "b", "r", rangeSpec(1, 10, 20))

	assert.Equal(t, 10.0, l.PreferredValue(v, 5))
	assert.Equal(t, 20.0, l.PreferredValue(v, 25))
	assert.Equal(t, 15.0, l.PreferredValue(v, 15))
	assert.Equal(t, 0.0, l.PreferredValue(99, 15))

	// The +Inf sentinel of a max preference never clamps.
	p := mainVariable(eq, "c", "d")
	mustSet(t, l, "c", "d", "p", ConstraintSpec{Priority: 1, Preference: PreferenceMax})
	assert.Equal(t, 7.0, l.PreferredValue(p, 7))
	mustSet(t, l, "c", "d", "m", minSpec(1, 5))
	assert.Equal(t, 5.0, l.PreferredValue(p, 1))
	assert.Equal(t, 100.0, l.PreferredValue(p, 100))
}

func TestPreferenceMinPinsRange(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "a", "b")
	mustSet(t, l, "a", "b", "p", ConstraintSpec{Priority: 1, Extremum1: Bound(4), Extremum2: Bound(9), Preference: PreferenceMin})

	assert.Equal(t, 4.0, l.GetMin(v, true))
	assert.Equal(t, 4.0, l.GetMax(v, true))
}
