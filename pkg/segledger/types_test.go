package segledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBounds(t *testing.T) {
	inf := math.Inf(1)
	tests := []struct {
		name string
		spec ConstraintSpec
		dir  int
		want resolvedBounds
	}{
		{
			name: "both extrema are order independent",
			spec: ConstraintSpec{Extremum1: Bound(20), Extremum2: Bound(10)},
			dir:  1,
			want: resolvedBounds{min: 10, max: 20, hasMin: true, hasMax: true},
		},
		{
			name: "both extrema reversed pair",
			spec: ConstraintSpec{Extremum1: Bound(10), Extremum2: Bound(20)},
			dir:  -1,
			want: resolvedBounds{min: -20, max: -10, hasMin: true, hasMax: true},
		},
		{
			name: "lone first extremum is a minimum",
			spec: ConstraintSpec{Extremum1: Bound(7)},
			dir:  1,
			want: resolvedBounds{min: 7, hasMin: true},
		},
		{
			name: "lone first extremum on reversed pair is a maximum",
			spec: ConstraintSpec{Extremum1: Bound(7)},
			dir:  -1,
			want: resolvedBounds{max: -7, hasMax: true},
		},
		{
			name: "lone second extremum is a maximum",
			spec: ConstraintSpec{Extremum2: Bound(7)},
			dir:  1,
			want: resolvedBounds{max: 7, hasMax: true},
		},
		{
			name: "lone second extremum on reversed pair is a minimum",
			spec: ConstraintSpec{Extremum2: Bound(7)},
			dir:  -1,
			want: resolvedBounds{min: -7, hasMin: true},
		},
		{
			name: "prefer min snaps to zero",
			spec: ConstraintSpec{Extremum1: Bound(-5), Extremum2: Bound(20), Preference: PreferenceMin},
			dir:  1,
			want: resolvedBounds{min: 0, max: 0, hasMin: true, hasMax: true},
		},
		{
			name: "prefer min clamps to a positive minimum",
			spec: ConstraintSpec{Extremum1: Bound(5), Extremum2: Bound(20), Preference: PreferenceMin},
			dir:  1,
			want: resolvedBounds{min: 5, max: 5, hasMin: true, hasMax: true},
		},
		{
			name: "prefer min clamps to a negative maximum",
			spec: ConstraintSpec{Extremum1: Bound(-20), Extremum2: Bound(-5), Preference: PreferenceMin},
			dir:  1,
			want: resolvedBounds{min: -5, max: -5, hasMin: true, hasMax: true},
		},
		{
			name: "prefer min without bounds",
			spec: ConstraintSpec{Preference: PreferenceMin},
			dir:  -1,
			want: resolvedBounds{min: 0, max: 0, hasMin: true, hasMax: true},
		},
		{
			name: "prefer max reuses an explicit maximum",
			spec: ConstraintSpec{Extremum2: Bound(30), Preference: PreferenceMax},
			dir:  1,
			want: resolvedBounds{min: 30, max: 30, hasMin: true, hasMax: true},
		},
		{
			name: "prefer max biases the minimum to infinity",
			spec: ConstraintSpec{Preference: PreferenceMax},
			dir:  1,
			want: resolvedBounds{min: inf, hasMin: true},
		},
		{
			name: "prefer max on reversed pair biases the maximum to minus infinity",
			spec: ConstraintSpec{Preference: PreferenceMax},
			dir:  -1,
			want: resolvedBounds{max: -inf, hasMax: true},
		},
		{
			name: "stability flips on reversed pair",
			spec: ConstraintSpec{Stability: StabilityMin},
			dir:  -1,
			want: resolvedBounds{stability: StabilityMax},
		},
		{
			name: "equals stability does not flip",
			spec: ConstraintSpec{Stability: StabilityEquals},
			dir:  -1,
			want: resolvedBounds{stability: StabilityEquals},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBounds(tt.spec, tt.dir))
		})
	}
}

func TestToVariable(t *testing.T) {
	b := resolvedBounds{min: 1, max: 3, hasMin: true, hasMax: true}

	vmin, vmax, hasMin, hasMax := toVariable(b, 2)
	assert.Equal(t, []float64{2, 6}, []float64{vmin, vmax})
	assert.True(t, hasMin && hasMax)

	vmin, vmax, hasMin, hasMax = toVariable(b, -2)
	assert.Equal(t, []float64{-6, -2}, []float64{vmin, vmax})
	assert.True(t, hasMin && hasMax)

	onlyMin := resolvedBounds{min: 4, hasMin: true}
	_, vmax, hasMin, hasMax = toVariable(onlyMin, -1)
	assert.False(t, hasMin)
	assert.True(t, hasMax)
	assert.Equal(t, -4.0, vmax)
}

func TestParseModes(t *testing.T) {
	for name, want := range map[string]Stability{"": StabilityNone, "min": StabilityMin, "max": StabilityMax, "equals": StabilityEquals} {
		got, err := ParseStability(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStability("sideways")
	assert.ErrorIs(t, err, ErrInvalidValue)

	for name, want := range map[string]Preference{"none": PreferenceNone, "min": PreferenceMin, "max": PreferenceMax} {
		got, err := ParsePreference(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = ParsePreference("middle")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestExtremum(t *testing.T) {
	v, ok := Bound(3.5).Value()
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)
	assert.Equal(t, "3.5", Bound(3.5).String())

	assert.False(t, Unbounded().IsBounded())
	assert.Equal(t, "unbounded", Unbounded().String())
}

func TestStabilityFlip(t *testing.T) {
	assert.Equal(t, StabilityMax, StabilityMin.Flip())
	assert.Equal(t, StabilityMin, StabilityMax.Flip())
	assert.Equal(t, StabilityEquals, StabilityEquals.Flip())
	assert.Equal(t, StabilityNone, StabilityNone.Flip())
}
