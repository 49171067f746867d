package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/gitrdm/segledger/pkg/segledger"
)

// ErrBadArgument is returned for a statement whose arguments the ledger
// cannot accept.
var ErrBadArgument = errors.New("bad argument")

// Failure is one expectation that did not hold.
type Failure struct {
	Pos     lexer.Position
	Message string
}

func (f Failure) Error() string {
	return f.Pos.String() + ": " + f.Message
}

// Result summarises a script run.
type Result struct {
	Statements int
	Expects    int
	Failures   []Failure
}

// Passed reports whether every expectation held.
func (r Result) Passed() bool {
	return len(r.Failures) == 0
}

// Runner executes scripts against one ledger and its in-memory equation
// layer. A Runner is not safe for concurrent use.
type Runner struct {
	ledger *segledger.Ledger
	eq     *segledger.MemoryEquations
	out    io.Writer
	logger *slog.Logger
}

// NewRunner creates a runner. Output of show and changes statements goes
// to out; a nil logger uses slog.Default().
func NewRunner(ledger *segledger.Ledger, eq *segledger.MemoryEquations, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{ledger: ledger, eq: eq, out: out, logger: logger}
}

// Run executes every statement of s in order. Failed expectations are
// collected in the result; a statement the ledger rejects stops the run
// and is returned as an error.
func (r *Runner) Run(ctx context.Context, s *Script) (Result, error) {
	var res Result
	for _, st := range s.Statements {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Statements++
		if st.Expect != nil {
			res.Expects++
			if msg, ok := r.expect(st.Expect); !ok {
				f := Failure{Pos: st.Pos, Message: "expect " + st.Expect.Kind() + ": " + msg}
				r.logger.Debug("expectation failed", "pos", st.Pos.String(), "message", f.Message)
				res.Failures = append(res.Failures, f)
			}
			continue
		}
		if err := r.exec(st); err != nil {
			return res, fmt.Errorf("%s: %s: %w", st.Pos, st.Kind(), err)
		}
	}
	return res, nil
}

func (r *Runner) exec(st *Statement) error {
	switch {
	case st.Set != nil:
		spec, err := buildSpec(st.Set.Options)
		if err != nil {
			return err
		}
		return r.ledger.SetConstraint(point(st.Set.Pair.P1), point(st.Set.Pair.P2), segledger.ConstraintID(st.Set.ID), spec)
	case st.Remove != nil:
		r.ledger.RemoveConstraint(point(st.Remove.Pair.P1), point(st.Remove.Pair.P2), segledger.ConstraintID(st.Remove.ID))
	case st.Drop != nil:
		r.ledger.RemovePair(point(st.Drop.P1), point(st.Drop.P2))
	case st.Group != nil:
		change := segledger.GroupAdded
		if st.Group.Op == "leave" {
			change = segledger.GroupRemoved
		}
		r.ledger.ApplyOrGroupDeltas(point(st.Group.Pair.P1), point(st.Group.Pair.P2), segledger.ConstraintID(st.Group.ID),
			[]segledger.OrGroupDelta{{Group: segledger.GroupName(st.Group.Group), Change: change}})
	case st.Ratio != nil:
		ratio, err := parseRatio(st.Ratio.Ratio)
		if err != nil {
			return err
		}
		r.eq.SetRatio(point(st.Ratio.Pair.P1), point(st.Ratio.Pair.P2), ratio)
	case st.Renumber != nil:
		r.eq.Renumber(point(st.Renumber.P1), point(st.Renumber.P2))
	case st.Link != nil:
		ratio := 1.0
		if st.Link.Ratio != nil {
			var err error
			if ratio, err = parseRatio(*st.Link.Ratio); err != nil {
				return err
			}
		}
		r.eq.Link(point(st.Link.Pair.P1), point(st.Link.Pair.P2), point(st.Link.Target.P1), point(st.Link.Target.P2), ratio)
	case st.Sync:
		n := r.ledger.SyncEquations()
		r.logger.Debug("synced equations", "pairs", n)
	case st.Show != nil:
		r.show(*st.Show)
	case st.Changes:
		r.changes()
	}
	return nil
}

func point(s string) segledger.PointID {
	return segledger.PointID(s)
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadArgument, s)
	}
	return v, nil
}

func parseRatio(s string) (float64, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if v == 0 || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: ratio must be finite and non-zero, got %s", ErrBadArgument, s)
	}
	return v, nil
}

func buildSpec(opts []*SetOption) (segledger.ConstraintSpec, error) {
	var spec segledger.ConstraintSpec
	for _, o := range opts {
		switch {
		case o.Priority != nil:
			p, err := parseNumber(*o.Priority)
			if err != nil {
				return spec, err
			}
			spec.Priority = p
		case o.Min != nil:
			v, err := parseNumber(*o.Min)
			if err != nil {
				return spec, err
			}
			spec.Extremum1 = segledger.Bound(v)
		case o.Max != nil:
			v, err := parseNumber(*o.Max)
			if err != nil {
				return spec, err
			}
			spec.Extremum2 = segledger.Bound(v)
		case o.Stability != nil:
			m, err := segledger.ParseStability(*o.Stability)
			if err != nil {
				return spec, err
			}
			spec.Stability = m
		case o.Prefer != nil:
			p, err := segledger.ParsePreference(*o.Prefer)
			if err != nil {
				return spec, err
			}
			spec.Preference = p
		case o.Groups != nil:
			names := make([]segledger.GroupName, len(o.Groups))
			for i, g := range o.Groups {
				names[i] = segledger.GroupName(g)
			}
			spec.OrGroups = segledger.OrGroups(names...)
		}
	}
	return spec, nil
}

// resolve maps a variable reference to a variable. A reference to a
// constraint picks its range host, or its stability host when it has no
// range.
func (r *Runner) resolve(ref VarRef) (segledger.VariableID, error) {
	p1, p2 := point(ref.Pair.P1), point(ref.Pair.P2)
	if ref.ID == nil {
		return r.eq.PairValue(p1, p2).Index, nil
	}
	hosts, ok := r.ledger.Hosts(p1, p2, segledger.ConstraintID(*ref.ID))
	if !ok {
		return segledger.NoVariable, fmt.Errorf("no constraint %s", ref)
	}
	if hosts.Range != segledger.NoVariable {
		return hosts.Range, nil
	}
	return hosts.Stability, nil
}

// expect evaluates e and returns a description of the mismatch.
func (r *Runner) expect(e *ExpectStmt) (string, bool) {
	switch {
	case e.Min != nil:
		return r.expectBound(e.Min, true)
	case e.Max != nil:
		return r.expectBound(e.Max, false)
	case e.Stability != nil:
		return r.expectStability(e.Stability)
	case e.Hosts != nil:
		want, err := strconv.Atoi(e.Hosts.Count)
		if err != nil {
			return err.Error(), false
		}
		got := r.ledger.PairVariables(point(e.Hosts.Pair.P1), point(e.Hosts.Pair.P2))
		if len(got) != want {
			return fmt.Sprintf("%s: want %d variables, got %v", e.Hosts.Pair, want, got), false
		}
	case e.Groups != nil:
		v, err := r.resolve(e.Groups.Ref)
		if err != nil {
			return err.Error(), false
		}
		var got []string
		for _, g := range r.ledger.VariableOrGroups(v) {
			got = append(got, string(g))
		}
		want := slices.Clone(e.Groups.Groups)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fmt.Sprintf("%s: want groups %v, got %v", e.Groups.Ref, want, got), false
		}
	case e.Clones != nil:
		want, err := strconv.Atoi(*e.Clones)
		if err != nil {
			return err.Error(), false
		}
		if got := r.eq.CloneCount(); got != want {
			return fmt.Sprintf("want %d clones, got %d", want, got), false
		}
	case e.Allows != nil:
		return r.expectAllows(e.Allows)
	case e.Satisfies != nil:
		return r.expectSatisfies(e.Satisfies)
	}
	return "", true
}

func (r *Runner) expectBound(e *ValueExpect, isMin bool) (string, bool) {
	v, err := r.resolve(e.Ref)
	if err != nil {
		return err.Error(), false
	}
	want, err := parseNumber(e.Value)
	if err != nil {
		return err.Error(), false
	}
	got := r.ledger.GetMax(v, true)
	if isMin {
		got = r.ledger.GetMin(v, true)
	}
	if !sameValue(got, want) {
		return fmt.Sprintf("%s: want %s, got %s", e.Ref, formatNumber(want), formatNumber(got)), false
	}
	return "", true
}

func (r *Runner) expectStability(e *StabilityExpect) (string, bool) {
	v, err := r.resolve(e.Ref)
	if err != nil {
		return err.Error(), false
	}
	down, err := parseNumber(e.NonDecrease)
	if err != nil {
		return err.Error(), false
	}
	up, err := parseNumber(e.NonIncrease)
	if err != nil {
		return err.Error(), false
	}
	got, _ := r.ledger.GetStability(v)
	if !sameValue(got.NonDecrease, down) || !sameValue(got.NonIncrease, up) {
		return fmt.Sprintf("%s: want %s/%s, got %s/%s", e.Ref,
			formatNumber(down), formatNumber(up),
			formatNumber(got.NonDecrease), formatNumber(got.NonIncrease)), false
	}
	return "", true
}

func (r *Runner) expectAllows(e *AllowsExpect) (string, bool) {
	v, err := r.resolve(e.Ref)
	if err != nil {
		return err.Error(), false
	}
	target, err := parseNumber(e.Target)
	if err != nil {
		return err.Error(), false
	}
	dir := segledger.Up
	if e.Dir == "down" {
		dir = segledger.Down
	}
	if got := r.ledger.AllowsMovement(v, dir, target).String(); got != e.Want {
		return fmt.Sprintf("%s %s %s: want %s, got %s", e.Ref, e.Dir, e.Target, e.Want, got), false
	}
	return "", true
}

func (r *Runner) expectSatisfies(e *SatisfiesExpect) (string, bool) {
	v, err := r.resolve(e.Ref)
	if err != nil {
		return err.Error(), false
	}
	value, err := parseNumber(e.Value)
	if err != nil {
		return err.Error(), false
	}
	var stable *float64
	if e.Stable != nil {
		s, err := parseNumber(*e.Stable)
		if err != nil {
			return err.Error(), false
		}
		stable = &s
	}
	sat, ok := r.ledger.OrGroupSatisfaction(v, value, stable)[segledger.GroupName(e.Group)]
	if !ok {
		return fmt.Sprintf("%s: group %s has no member on the variable", e.Ref, e.Group), false
	}
	if got := sat.String(); got != e.Want {
		return fmt.Sprintf("%s at %s: want %s, got %s", e.Ref, e.Value, e.Want, got), false
	}
	return "", true
}

// sameValue compares two bounds, treating equal infinities as equal.
func sameValue(a, b float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// show prints every variable the pair occupies with its chains.
func (r *Runner) show(p PairRef) {
	vars := r.ledger.PairVariables(point(p.P1), point(p.P2))
	fmt.Fprintf(r.out, "%s:", p)
	if len(vars) == 0 {
		fmt.Fprintln(r.out, " empty")
		return
	}
	fmt.Fprintln(r.out)
	for _, v := range vars {
		var b strings.Builder
		fmt.Fprintf(&b, "  v%d", v)
		if origin, ok := r.eq.CloneOrigin(v); ok {
			fmt.Fprintf(&b, " (clone of v%d)", origin)
		}
		fmt.Fprintf(&b, " min %s max %s", formatChain(r.ledger.MinChain(v)), formatChain(r.ledger.MaxChain(v)))
		if sp, ok := r.ledger.GetStability(v); ok {
			fmt.Fprintf(&b, " stability %s/%s", formatNumber(sp.NonDecrease), formatNumber(sp.NonIncrease))
		}
		if groups := r.ledger.VariableOrGroups(v); len(groups) > 0 {
			fmt.Fprintf(&b, " groups %v", groups)
		}
		fmt.Fprintln(r.out, b.String())
	}
}

func formatChain(nodes []segledger.ChainNode) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = formatNumber(n.Value) + "@" + formatNumber(n.Priority)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (r *Runner) changes() {
	changed := r.ledger.DrainChanges()
	parts := make([]string, len(changed))
	for i, v := range changed {
		parts[i] = "v" + strconv.Itoa(int(v))
	}
	fmt.Fprintf(r.out, "changed: [%s]\n", strings.Join(parts, " "))
}
