package segledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrGroupMembersExcludedFromChainPriority(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "a", "b")

	mustSet(t, l, "a", "b", "A", minSpec(5, 10))
	assert.Equal(t, 5.0, l.PriorityForValue(v, 10, true).AtValue)

	l.ApplyOrGroupDeltas("a", "b", "A", []OrGroupDelta{{Group: "g", Change: GroupAdded}})
	assert.Equal(t, NoPriority, l.PriorityForValue(v, 10, true).AtValue)
	p, ok := l.OrGroupPriority("g")
	require.True(t, ok)
	assert.Equal(t, 5.0, p)
	assert.Equal(t, []GroupName{"g"}, l.VariableOrGroups(v))

	l.ApplyOrGroupDeltas("a", "b", "A", []OrGroupDelta{{Group: "g", Change: GroupRemoved}})
	assert.Equal(t, 5.0, l.PriorityForValue(v, 10, true).AtValue)
	_, ok = l.OrGroupPriority("g")
	assert.False(t, ok)
	assert.Empty(t, l.VariableOrGroups(v))
}

func TestOrGroupMembershipFromDescriptor(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "a", "b")

	mustSet(t, l, "a", "b", "A", ConstraintSpec{Priority: 1, Extremum1: Bound(3), OrGroups: OrGroups("g", "h")})
	assert.Equal(t, []GroupName{"g", "h"}, l.VariableOrGroups(v))

	// Setting again without a descriptor leaves every group.
	mustSet(t, l, "a", "b", "A", minSpec(1, 3))
	assert.Empty(t, l.VariableOrGroups(v))
	assert.Zero(t, l.Stats().OrGroups)

	// Deltas for unknown constraints are ignored.
	l.ApplyOrGroupDeltas("a", "b", "missing", []OrGroupDelta{{Group: "g"}})
	l.ApplyOrGroupDeltas("p", "q", "A", []OrGroupDelta{{Group: "g"}})
	assert.Zero(t, l.Stats().OrGroups)
}

func TestOrGroupAggregatePriority(t *testing.T) {
	l, _ := newTestLedger(t)

	mustSet(t, l, "a", "b", "A", ConstraintSpec{Priority: 1, Extremum1: Bound(1), OrGroups: OrGroups("g")})
	info, ok := l.OrGroup("g")
	require.True(t, ok)
	assert.Equal(t, 1.0, info.Priority)
	assert.True(t, info.AllPrioritiesEqual)

	mustSet(t, l, "c", "d", "B", ConstraintSpec{Priority: 3, Extremum1: Bound(1), OrGroups: OrGroups("g")})
	info, _ = l.OrGroup("g")
	assert.Equal(t, 3.0, info.Priority)
	assert.False(t, info.AllPrioritiesEqual)
	assert.Equal(t, []ConstraintKey{{Pair: "a;b", ID: "A"}, {Pair: "c;d", ID: "B"}}, info.Members)

	// The first change of a drain cycle is kept: the group was created.
	assert.Equal(t, map[GroupName]float64{"g": NoPriority}, l.Changes().DrainOrGroupPriorityChanges())

	l.RemoveConstraint("c", "d", "B")
	info, _ = l.OrGroup("g")
	assert.Equal(t, 1.0, info.Priority)
	assert.True(t, info.AllPrioritiesEqual)
	assert.Equal(t, map[GroupName]float64{"g": 3}, l.Changes().DrainOrGroupPriorityChanges())

	// Changing a member's priority without moving the maximum logs nothing.
	mustSet(t, l, "c", "d", "C", ConstraintSpec{Priority: 5, Extremum1: Bound(1), OrGroups: OrGroups("g")})
	l.Changes().DrainOrGroupPriorityChanges()
	mustSet(t, l, "a", "b", "A", ConstraintSpec{Priority: 2, Extremum1: Bound(1), OrGroups: OrGroups("g")})
	assert.Empty(t, l.Changes().DrainOrGroupPriorityChanges())
}

func TestOrGroupRemovalLog(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "a", "b")

	mustSet(t, l, "a", "b", "A", ConstraintSpec{Priority: 1, Extremum1: Bound(1), OrGroups: OrGroups("g")})
	mustSet(t, l, "a", "b", "B", ConstraintSpec{Priority: 1, Extremum1: Bound(2), OrGroups: OrGroups("g")})

	l.RemoveConstraint("a", "b", "A")
	assert.Empty(t, l.Changes().OrGroupRemovals())

	l.RemoveConstraint("a", "b", "B")
	assert.Equal(t, map[GroupName][]VariableID{"g": {v}}, l.Changes().OrGroupRemovals())

	l.Changes().ClearOrGroupChanges()
	assert.Empty(t, l.Changes().OrGroupRemovals())
}

func TestOrGroupSatisfactionAcrossVariables(t *testing.T) {
	l, eq := newTestLedger(t)

	mustSet(t, l, "a", "b", "near", ConstraintSpec{Priority: 1, Extremum1: Bound(5), OrGroups: OrGroups("g")})
	mustSet(t, l, "c", "d", "far", ConstraintSpec{Priority: 1, Extremum1: Bound(0), OrGroups: OrGroups("g")})
	x := mainVariable(eq, "a", "b")
	y := mainVariable(eq, "c", "d")
	require.NotEqual(t, x, y)

	m := l.AllowsMovement(x, Down, 3)
	assert.False(t, m.Blocked)
	assert.Equal(t, []GroupName{"g"}, m.ViolatedGroups)
	assert.Equal(t, "[g]", m.String())

	sy := l.OrGroupSatisfaction(y, 3, nil)
	require.Contains(t, sy, GroupName("g"))
	assert.False(t, sy["g"].Violated)
	assert.Equal(t, TightNone, sy["g"].Tightness)

	sx := l.OrGroupSatisfaction(x, 3, nil)
	assert.Equal(t, GroupSatisfaction{Violated: true, Target: 5}, sx["g"])
	assert.Equal(t, "violated:5", sx["g"].String())
}

func TestAllowsMovement(t *testing.T) {
	t.Run("ungrouped minimum blocks a decrease", func(t *testing.T) {
		l, eq := newTestLedger(t)
		v := mainVariable(eq, "a", "b")
		mustSet(t, l, "a", "b", "A", rangeSpec(1, 5, 10))

		assert.True(t, l.AllowsMovement(v, Down, 3).Blocked)
		assert.True(t, l.AllowsMovement(v, Down, 5).Free())
		assert.True(t, l.AllowsMovement(v, Up, 10).Free())
		assert.Equal(t, "false", l.AllowsMovement(v, Up, 11).String())
		assert.Equal(t, "true", l.AllowsMovement(v, Up, 7).String())
	})

	t.Run("another member on the variable keeps the group satisfied", func(t *testing.T) {
		l, eq := newTestLedger(t)
		v := mainVariable(eq, "a", "b")
		mustSet(t, l, "a", "b", "A", ConstraintSpec{Priority: 1, Extremum1: Bound(5), OrGroups: OrGroups("g")})
		mustSet(t, l, "a", "b", "C", ConstraintSpec{Priority: 1, Extremum2: Bound(10), OrGroups: OrGroups("g")})

		assert.True(t, l.AllowsMovement(v, Down, 3).Free())
	})

	t.Run("grouped stability", func(t *testing.T) {
		l, eq := newTestLedger(t)
		v := mainVariable(eq, "a", "b")
		mustSet(t, l, "a", "b", "S", ConstraintSpec{Priority: 1, Stability: StabilityMin, OrGroups: OrGroups("h")})

		assert.Equal(t, []GroupName{"h"}, l.AllowsMovement(v, Down, -1).ViolatedGroups)
		assert.True(t, l.AllowsMovement(v, Up, 1).Free())
	})

	t.Run("ungrouped stability blocks", func(t *testing.T) {
		l, eq := newTestLedger(t)
		v := mainVariable(eq, "a", "b")
		mustSet(t, l, "a", "b", "S", ConstraintSpec{Priority: 1, Stability: StabilityMax})

		assert.True(t, l.AllowsMovement(v, Up, 1).Blocked)
		assert.True(t, l.AllowsMovement(v, Down, -1).Free())
	})

	t.Run("unknown variable moves freely", func(t *testing.T) {
		l, _ := newTestLedger(t)
		assert.True(t, l.AllowsMovement(42, Up, 100).Free())
	})
}

func TestOrGroupTightness(t *testing.T) {
	tests := []struct {
		name  string
		spec  ConstraintSpec
		value float64
		want  string
	}{
		{name: "at minimum", spec: minSpec(1, 5), value: 5, want: "[)"},
		{name: "above minimum", spec: minSpec(1, 5), value: 7, want: "()"},
		{name: "at maximum", spec: maxSpec(1, 5), value: 5, want: "(]"},
		{name: "pinned", spec: rangeSpec(1, 5, 5), value: 5, want: "[]"},
		{name: "below minimum", spec: minSpec(1, 5), value: 2, want: "violated:5"},
		{name: "above maximum", spec: maxSpec(1, 5), value: 8.5, want: "violated:5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, eq := newTestLedger(t)
			spec := tt.spec
			spec.OrGroups = OrGroups("g")
			mustSet(t, l, "a", "b", "A", spec)

			got := l.OrGroupSatisfaction(mainVariable(eq, "a", "b"), tt.value, nil)
			assert.Equal(t, tt.want, got["g"].String())
		})
	}
}

func TestOrGroupStabilitySatisfaction(t *testing.T) {
	l, eq := newTestLedger(t)
	v := mainVariable(eq, "e", "f")
	mustSet(t, l, "e", "f", "S", ConstraintSpec{Priority: 1, Stability: StabilityEquals, OrGroups: OrGroups("h")})

	stable := 4.0
	assert.Equal(t, "[]", l.OrGroupSatisfaction(v, 4, &stable)["h"].String())
	assert.Equal(t, "violated:4", l.OrGroupSatisfaction(v, 6, &stable)["h"].String())
	assert.Equal(t, "[]", l.OrGroupSatisfaction(v, 6, nil)["h"].String())

	// Nearest target wins when several members are violated.
	mustSet(t, l, "e", "f", "R", ConstraintSpec{Priority: 1, Extremum1: Bound(100), OrGroups: OrGroups("h")})
	r, _ := l.Hosts("e", "f", "R")
	require.NotEqual(t, v, r.Range)
	sat := l.OrGroupSatisfaction(r.Range, 90, nil)["h"]
	assert.True(t, sat.Violated)
	assert.Equal(t, 100.0, sat.Target)
	assert.False(t, math.IsInf(sat.Target, 0))
}
