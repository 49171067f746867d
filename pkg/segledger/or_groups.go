package segledger

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// OrGroupDescriptor describes which disjunction groups a constraint belongs
// to. The ledger asks for the groups once per SetConstraint; later changes
// arrive as OrGroupDelta messages through ApplyOrGroupDeltas.
type OrGroupDescriptor interface {
	Groups() []GroupName
}

// StaticOrGroups is a fixed list of group names.
type StaticOrGroups []GroupName

// Groups implements OrGroupDescriptor.
func (s StaticOrGroups) Groups() []GroupName { return s }

// OrGroups is shorthand for a StaticOrGroups descriptor.
func OrGroups(names ...GroupName) StaticOrGroups {
	return StaticOrGroups(names)
}

// GroupChange is the kind of an or-group membership delta.
type GroupChange int

const (
	// GroupAdded means the constraint joined the group.
	GroupAdded GroupChange = iota

	// GroupRemoved means the constraint left the group.
	GroupRemoved
)

// String returns "added" or "removed".
func (c GroupChange) String() string {
	if c == GroupRemoved {
		return "removed"
	}
	return "added"
}

// OrGroupDelta is one membership change for one constraint.
type OrGroupDelta struct {
	Group  GroupName
	Change GroupChange
}

func descriptorGroups(d OrGroupDescriptor) map[GroupName]struct{} {
	if d == nil {
		return nil
	}
	names := d.Groups()
	if len(names) == 0 {
		return nil
	}
	out := make(map[GroupName]struct{}, len(names))
	for _, g := range names {
		out[g] = struct{}{}
	}
	return out
}

// orGroup is a named disjunction: satisfied when any member is.
type orGroup struct {
	members            map[ConstraintKey]float64
	priority           float64
	allPrioritiesEqual bool
}

func (g *orGroup) aggregate() {
	g.priority = NoPriority
	for _, p := range g.members {
		if p > g.priority {
			g.priority = p
		}
	}
	g.allPrioritiesEqual = true
	for _, p := range g.members {
		if p != g.priority {
			g.allPrioritiesEqual = false
			break
		}
	}
}

// orGroupIndex maps group names to members and tracks, per variable, which
// members of each group are posted there.
type orGroupIndex struct {
	groups map[GroupName]*orGroup
	hosted map[VariableID]map[GroupName]map[ConstraintKey]struct{}
}

func newOrGroupIndex() *orGroupIndex {
	return &orGroupIndex{
		groups: make(map[GroupName]*orGroup),
		hosted: make(map[VariableID]map[GroupName]map[ConstraintKey]struct{}),
	}
}

// addToGroup adds key to g, or refreshes its priority, and logs a change
// of the group's aggregate priority.
func (l *Ledger) addToGroup(name GroupName, key ConstraintKey, priority float64) {
	g, ok := l.groups.groups[name]
	created := !ok
	if created {
		g = &orGroup{members: make(map[ConstraintKey]float64), priority: NoPriority}
		l.groups.groups[name] = g
		l.metrics.groupCreated()
	}
	if p, member := g.members[key]; member && p == priority {
		return
	}
	prev := g.priority
	g.members[key] = priority
	g.aggregate()
	if created || g.priority != prev {
		l.changes.RecordOrGroupPriorityChange(name, prev)
	}
}

func (l *Ledger) removeFromGroup(name GroupName, key ConstraintKey) {
	g, ok := l.groups.groups[name]
	if !ok {
		return
	}
	if _, ok := g.members[key]; !ok {
		return
	}
	prev := g.priority
	delete(g.members, key)
	if len(g.members) == 0 {
		delete(l.groups.groups, name)
		l.metrics.groupRetired()
		l.changes.RecordOrGroupPriorityChange(name, prev)
		return
	}
	g.aggregate()
	if g.priority != prev {
		l.changes.RecordOrGroupPriorityChange(name, prev)
	}
}

// syncGroups makes c a member of exactly the groups in want, at its
// current priority.
func (l *Ledger) syncGroups(c *constraintRecord, want map[GroupName]struct{}) {
	for g := range c.groups {
		if _, keep := want[g]; !keep {
			l.removeFromGroup(g, c.key)
		}
	}
	for g := range want {
		l.addToGroup(g, c.key, c.priority)
	}
	c.groups = want
}

// syncFootprint brings the per-variable group index in line with where c
// is posted and which groups it belongs to.
func (l *Ledger) syncFootprint(c *constraintRecord) {
	want := make(map[groupSlot]struct{})
	for g := range c.groups {
		if c.rangeHost != NoVariable {
			want[groupSlot{c.rangeHost, g}] = struct{}{}
		}
		if c.stabHost != NoVariable {
			want[groupSlot{c.stabHost, g}] = struct{}{}
		}
	}
	for s := range c.footprint {
		if _, keep := want[s]; !keep {
			l.detachGroup(s, c.key)
			delete(c.footprint, s)
		}
	}
	for s := range want {
		if _, have := c.footprint[s]; !have {
			l.attachGroup(s, c.key)
			c.footprint[s] = struct{}{}
		}
	}
}

func (l *Ledger) attachGroup(s groupSlot, key ConstraintKey) {
	byGroup, ok := l.groups.hosted[s.v]
	if !ok {
		byGroup = make(map[GroupName]map[ConstraintKey]struct{})
		l.groups.hosted[s.v] = byGroup
	}
	keys, ok := byGroup[s.g]
	if !ok {
		keys = make(map[ConstraintKey]struct{})
		byGroup[s.g] = keys
	}
	keys[key] = struct{}{}
	l.changes.AddChange(s.v)
}

func (l *Ledger) detachGroup(s groupSlot, key ConstraintKey) {
	byGroup := l.groups.hosted[s.v]
	keys := byGroup[s.g]
	if _, ok := keys[key]; !ok {
		return
	}
	delete(keys, key)
	l.changes.AddChange(s.v)
	if len(keys) > 0 {
		return
	}
	delete(byGroup, s.g)
	if len(byGroup) == 0 {
		delete(l.groups.hosted, s.v)
	}
	l.changes.AddOrGroupRemoved(s.g, s.v)
}

// ApplyOrGroupDeltas applies membership changes for constraint id on the
// pair (p1, p2). Deltas for an unknown constraint are ignored.
func (l *Ledger) ApplyOrGroupDeltas(p1, p2 PointID, id ConstraintID, deltas []OrGroupDelta) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pair, ok := l.lookupPair(p1, p2)
	if !ok {
		return
	}
	c, ok := pair.constraints[id]
	if !ok {
		return
	}

	want := make(map[GroupName]struct{}, len(c.groups)+len(deltas))
	for g := range c.groups {
		want[g] = struct{}{}
	}
	for _, d := range deltas {
		switch d.Change {
		case GroupAdded:
			want[d.Group] = struct{}{}
		case GroupRemoved:
			delete(want, d.Group)
		}
	}
	if len(want) == 0 {
		want = nil
	}

	wasGrouped := c.grouped()
	l.syncGroups(c, want)
	if wasGrouped != c.grouped() {
		l.refreshMember(c)
	}
	l.syncFootprint(c)
	l.settle()
}

// OrGroupPriority returns the highest priority among the group's members.
func (l *Ledger) OrGroupPriority(name GroupName) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups.groups[name]
	if !ok {
		return NoPriority, false
	}
	return g.priority, true
}

// OrGroupInfo describes a group's aggregate state.
type OrGroupInfo struct {
	Priority           float64
	AllPrioritiesEqual bool
	Members            []ConstraintKey
}

// OrGroup returns the aggregate state of a group.
func (l *Ledger) OrGroup(name GroupName) (OrGroupInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups.groups[name]
	if !ok {
		return OrGroupInfo{Priority: NoPriority}, false
	}
	members := make([]ConstraintKey, 0, len(g.members))
	for k := range g.members {
		members = append(members, k)
	}
	sortKeys(members)
	return OrGroupInfo{Priority: g.priority, AllPrioritiesEqual: g.allPrioritiesEqual, Members: members}, true
}

// VariableOrGroups returns, sorted, the groups with at least one member
// posted on v.
func (l *Ledger) VariableOrGroups(v VariableID) []GroupName {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.variableOrGroups(v)
}

func (l *Ledger) variableOrGroups(v VariableID) []GroupName {
	byGroup := l.groups.hosted[v]
	out := make([]GroupName, 0, len(byGroup))
	for g := range byGroup {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tightness classifies how much room a satisfied group leaves around a
// value.
type Tightness string

const (
	// TightNone means the value can move either way and stay satisfied.
	TightNone Tightness = "()"

	// TightBelow means any decrease violates the group.
	TightBelow Tightness = "[)"

	// TightAbove means any increase violates the group.
	TightAbove Tightness = "(]"

	// TightBoth means any movement violates the group.
	TightBoth Tightness = "[]"
)

// GroupSatisfaction is the state of one or-group at a probed value.
type GroupSatisfaction struct {
	Violated bool

	// Target is the nearest value satisfying some member, set when
	// Violated.
	Target float64

	// Tightness is set when the group is satisfied.
	Tightness Tightness
}

// String renders "violated:<target>" or the tightness tag.
func (s GroupSatisfaction) String() string {
	if s.Violated {
		return "violated:" + strconv.FormatFloat(s.Target, 'g', -1, 64)
	}
	return string(s.Tightness)
}

// memberState is one posted part of a group member evaluated at a value.
type memberState struct {
	satisfied              bool
	target                 float64
	slackBelow, slackAbove bool
}

// rangeState evaluates a posted range at value.
func rangeState(c *constraintRecord, value float64) memberState {
	switch {
	case c.postedHasMin && value < c.postedMin:
		return memberState{target: c.postedMin}
	case c.postedHasMax && value > c.postedMax:
		return memberState{target: c.postedMax}
	}
	return memberState{
		satisfied:  true,
		slackBelow: !c.postedHasMin || c.postedMin < value,
		slackAbove: !c.postedHasMax || value < c.postedMax,
	}
}

// stabilityState evaluates a posted stability mode at value relative to
// the stable value; without one the member is taken as satisfied and tight
// in the directions it resists.
func stabilityState(mode Stability, value float64, stable float64, hasStable bool) memberState {
	if !hasStable {
		return memberState{
			satisfied:  true,
			slackBelow: !mode.resistsDecrease(),
			slackAbove: !mode.resistsIncrease(),
		}
	}
	if (mode.resistsDecrease() && value < stable) || (mode.resistsIncrease() && value > stable) {
		return memberState{target: stable}
	}
	return memberState{
		satisfied:  true,
		slackBelow: !mode.resistsDecrease() || value > stable,
		slackAbove: !mode.resistsIncrease() || value < stable,
	}
}

// groupMemberStates evaluates every part of every member of g posted on v.
func (l *Ledger) groupMemberStates(v VariableID, g GroupName, value float64, stable float64, hasStable bool) []memberState {
	var out []memberState
	for key := range l.groups.hosted[v][g] {
		c, ok := l.record(key)
		if !ok {
			continue
		}
		if c.rangeHost == v {
			out = append(out, rangeState(c, value))
		}
		if c.stabHost == v {
			out = append(out, stabilityState(c.postedStability, value, stable, hasStable))
		}
	}
	return out
}

// OrGroupSatisfaction reports, for each group with a member on v, whether
// value satisfies at least one of the members posted on v. stable is the
// current stable value used for stability members; nil treats them as
// satisfied.
func (l *Ledger) OrGroupSatisfaction(v VariableID, value float64, stable *float64) map[GroupName]GroupSatisfaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var s float64
	hasStable := stable != nil
	if hasStable {
		s = *stable
	}

	out := make(map[GroupName]GroupSatisfaction)
	for g := range l.groups.hosted[v] {
		states := l.groupMemberStates(v, g, value, s, hasStable)
		satisfied := false
		tightBelow, tightAbove := true, true
		var target, dist float64
		found := false
		for _, st := range states {
			if st.satisfied {
				satisfied = true
				tightBelow = tightBelow && !st.slackBelow
				tightAbove = tightAbove && !st.slackAbove
				continue
			}
			if d := math.Abs(st.target - value); !found || d < dist {
				target, dist, found = st.target, d, true
			}
		}
		if !satisfied {
			out[g] = GroupSatisfaction{Violated: true, Target: target}
			continue
		}
		out[g] = GroupSatisfaction{Tightness: tightness(tightBelow, tightAbove)}
	}
	return out
}

func tightness(below, above bool) Tightness {
	switch {
	case below && above:
		return TightBoth
	case below:
		return TightBelow
	case above:
		return TightAbove
	default:
		return TightNone
	}
}

// Movement is the answer to AllowsMovement.
type Movement struct {
	// Blocked is set when a constraint outside every or-group resists.
	Blocked bool

	// ViolatedGroups lists, sorted, the or-groups whose resisting members
	// are not backed by another member satisfied on this variable. The
	// caller must check the other variables holding these groups.
	ViolatedGroups []GroupName
}

// Free reports whether nothing resists the movement.
func (m Movement) Free() bool {
	return !m.Blocked && len(m.ViolatedGroups) == 0
}

// String renders "true", "false", or the violated group list.
func (m Movement) String() string {
	switch {
	case m.Blocked:
		return "false"
	case len(m.ViolatedGroups) == 0:
		return "true"
	default:
		return fmt.Sprint(m.ViolatedGroups)
	}
}

// AllowsMovement reports whether v may move in dir to target. Moving up is
// resisted by maxima below target and by stability resisting increase;
// moving down by minima above target and stability resisting decrease.
func (l *Ledger) AllowsMovement(v VariableID, dir Direction, target float64) Movement {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.vars[v]
	if !ok {
		return Movement{}
	}

	resisting := make(map[ConstraintKey]struct{})
	if dir == Up {
		for i := range e.max.nodes {
			n := &e.max.nodes[i]
			if n.value >= target {
				break
			}
			if n.ungrouped > 0 {
				return Movement{Blocked: true}
			}
			for k := range n.members {
				resisting[k] = struct{}{}
			}
		}
	} else {
		for i := range e.min.nodes {
			n := &e.min.nodes[i]
			if n.value <= target {
				break
			}
			if n.ungrouped > 0 {
				return Movement{Blocked: true}
			}
			for k := range n.members {
				resisting[k] = struct{}{}
			}
		}
	}
	if e.stability != nil {
		if e.stability.ungroupedResisting(dir) {
			return Movement{Blocked: true}
		}
		for k, m := range e.stability.members {
			if resists(m.mode, dir) {
				resisting[k] = struct{}{}
			}
		}
	}
	if len(resisting) == 0 {
		return Movement{}
	}

	candidates := make(map[GroupName]struct{})
	for k := range resisting {
		if c, ok := l.record(k); ok {
			for g := range c.groups {
				candidates[g] = struct{}{}
			}
		}
	}

	var violated []GroupName
	for g := range candidates {
		if !l.groupSatisfiedMoving(v, g, dir, target) {
			violated = append(violated, g)
		}
	}
	sort.Slice(violated, func(i, j int) bool { return violated[i] < violated[j] })
	return Movement{ViolatedGroups: violated}
}

// groupSatisfiedMoving reports whether some member of g posted on v stays
// satisfied after moving in dir to target.
func (l *Ledger) groupSatisfiedMoving(v VariableID, g GroupName, dir Direction, target float64) bool {
	for key := range l.groups.hosted[v][g] {
		c, ok := l.record(key)
		if !ok {
			continue
		}
		rangeOK, stabOK := true, true
		if c.rangeHost == v {
			rangeOK = rangeState(c, target).satisfied
		}
		if c.stabHost == v {
			stabOK = !resists(c.postedStability, dir)
		}
		if rangeOK && stabOK {
			return true
		}
	}
	return false
}
