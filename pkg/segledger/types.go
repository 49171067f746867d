package segledger

import (
	"fmt"
	"math"
	"strconv"
)

// PointID names one endpoint of an offset. Points are opaque to the ledger.
type PointID string

// PairID identifies a canonical point pair as reported by the equation layer.
type PairID string

// ConstraintID is the caller-chosen identifier of a constraint within a pair.
type ConstraintID string

// VariableID is a variable index allocated by the equation layer.
type VariableID int

// NoVariable marks the absence of a hosting variable.
const NoVariable VariableID = -1

// GroupName names an or-group (disjunction group).
type GroupName string

// NoPriority is the priority of a constraint that should be relaxed last of all.
var NoPriority = math.Inf(-1)

// ConstraintKey identifies a constraint across every pair that may share a
// variable. Two pairs can be mapped onto the same variable by the equation
// layer, so the constraint id alone is not unique on a variable.
type ConstraintKey struct {
	Pair PairID
	ID   ConstraintID
}

// String returns "pair/id".
func (k ConstraintKey) String() string {
	return string(k.Pair) + "/" + string(k.ID)
}

// Extremum is a bound supplied by a caller: either a concrete value or
// unbounded in that direction.
type Extremum struct {
	value   float64
	bounded bool
}

// Bound returns a bounded extremum at v.
func Bound(v float64) Extremum {
	return Extremum{value: v, bounded: true}
}

// Unbounded returns the absent extremum.
func Unbounded() Extremum {
	return Extremum{}
}

// IsBounded reports whether the extremum carries a value.
func (e Extremum) IsBounded() bool { return e.bounded }

// Value returns the bound and whether it is set.
func (e Extremum) Value() (float64, bool) { return e.value, e.bounded }

// String returns the value or "unbounded".
func (e Extremum) String() string {
	if !e.bounded {
		return "unbounded"
	}
	return strconv.FormatFloat(e.value, 'g', -1, 64)
}

// Stability is the resistance-to-change mode of a constraint.
type Stability int

const (
	// StabilityNone places no resistance on the offset.
	StabilityNone Stability = iota

	// StabilityMin resists a decrease of the offset.
	StabilityMin

	// StabilityMax resists an increase of the offset.
	StabilityMax

	// StabilityEquals resists change in both directions.
	StabilityEquals
)

// String returns the mode name used in scripts and logs.
func (s Stability) String() string {
	switch s {
	case StabilityNone:
		return "none"
	case StabilityMin:
		return "min"
	case StabilityMax:
		return "max"
	case StabilityEquals:
		return "equals"
	default:
		return "unknown"
	}
}

// Flip exchanges min and max. Used when a value is reflected into a frame
// of opposite orientation.
func (s Stability) Flip() Stability {
	switch s {
	case StabilityMin:
		return StabilityMax
	case StabilityMax:
		return StabilityMin
	default:
		return s
	}
}

// resistsDecrease reports whether the mode resists movement toward -Inf.
func (s Stability) resistsDecrease() bool {
	return s == StabilityMin || s == StabilityEquals
}

// resistsIncrease reports whether the mode resists movement toward +Inf.
func (s Stability) resistsIncrease() bool {
	return s == StabilityMax || s == StabilityEquals
}

// ParseStability converts a mode name into a Stability.
func ParseStability(s string) (Stability, error) {
	switch s {
	case "", "none":
		return StabilityNone, nil
	case "min":
		return StabilityMin, nil
	case "max":
		return StabilityMax, nil
	case "equals":
		return StabilityEquals, nil
	default:
		return StabilityNone, fmt.Errorf("ParseStability: %w: %q", ErrInvalidValue, s)
	}
}

// Preference biases a constraint's range toward one of its extremes.
type Preference int

const (
	// PreferenceNone leaves the range as given.
	PreferenceNone Preference = iota

	// PreferenceMin pulls the offset toward zero, or toward the bound
	// closest to zero when zero is outside the range.
	PreferenceMin

	// PreferenceMax pushes the offset as far as possible in the caller's
	// direction.
	PreferenceMax
)

// String returns the preference name.
func (p Preference) String() string {
	switch p {
	case PreferenceNone:
		return "none"
	case PreferenceMin:
		return "min"
	case PreferenceMax:
		return "max"
	default:
		return "unknown"
	}
}

// ParsePreference converts a preference name into a Preference.
func ParsePreference(s string) (Preference, error) {
	switch s {
	case "", "none":
		return PreferenceNone, nil
	case "min":
		return PreferenceMin, nil
	case "max":
		return PreferenceMax, nil
	default:
		return PreferenceNone, fmt.Errorf("ParsePreference: %w: %q", ErrInvalidValue, s)
	}
}

// Direction is the sign of a movement of a variable's value.
type Direction int

const (
	// Down moves a value toward -Inf.
	Down Direction = -1

	// Up moves a value toward +Inf.
	Up Direction = 1
)

// String returns "down" or "up".
func (d Direction) String() string {
	if d < 0 {
		return "down"
	}
	return "up"
}

// ConstraintSpec carries everything a caller supplies for one constraint
// besides the point pair and the constraint id.
//
// Extremum1 and Extremum2 are expressed in the caller's direction (from the
// first point to the second). When both are bounded the smaller becomes the
// minimum; a lone Extremum1 is a minimum and a lone Extremum2 a maximum.
type ConstraintSpec struct {
	Priority   float64
	Extremum1  Extremum
	Extremum2  Extremum
	Stability  Stability
	Preference Preference

	// OrGroups lists the disjunction groups the constraint belongs to.
	// nil removes any existing membership.
	OrGroups OrGroupDescriptor
}

// isEmpty reports whether s carries nothing to post, in which case
// setting it is the same as removing the constraint.
func (s ConstraintSpec) isEmpty() bool {
	return !s.Extremum1.bounded && !s.Extremum2.bounded &&
		s.Stability == StabilityNone && s.Preference == PreferenceNone
}

// ChainNode is a snapshot of one value in a variable's min or max chain.
type ChainNode struct {
	Value    float64
	Priority float64
	IDNum    int
	IDs      []ConstraintKey
}

// StabilityPriority is the aggregate stability of a variable: the highest
// non-disjunctive priority resisting a decrease and an increase.
type StabilityPriority struct {
	NonDecrease float64
	NonIncrease float64
}

// ConstraintHosts reports which variables currently carry a constraint.
// Range is NoVariable when the constraint has no min or max, Stability when
// it has no stability mode.
type ConstraintHosts struct {
	Range     VariableID
	Stability VariableID
}
