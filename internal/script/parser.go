// Package script implements a small line-oriented language for driving a
// segment ledger: posting and removing constraints, reshaping the
// in-memory equation layer, printing state and asserting on it.
//
// A script is a sequence of statements, one per line:
//
//	# two widths that cannot both hold
//	set left right w1 priority 1 min 100
//	set left right w2 priority 2 max 80
//	expect hosts left right 2
//	expect max left right/w2 80
//	remove left right w2
//	expect clones 0
package script

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "Number", Pattern: `[-+]?(?:\d+(?:\.\d+)?|inf)\b`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
		{Name: "Punct", Pattern: `[(),/]`},
	})

	scriptParser = participle.MustBuild[Script](
		participle.Lexer(scriptLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.Unquote("String"),
	)
)

// Script is the root node of a parsed script. Every statement ends at a
// line break or at the end of input.
type Script struct {
	Statements []*Statement `parser:"Newline* ( @@ ( Newline+ | EOF ) )*"`
}

// Statement is one line of a script.
type Statement struct {
	Pos lexer.Position `parser:""`

	Set      *SetStmt    `parser:"  @@"`
	Remove   *RemoveStmt `parser:"| @@"`
	Drop     *PairRef    `parser:"| 'drop' @@"`
	Group    *GroupStmt  `parser:"| @@"`
	Ratio    *RatioStmt  `parser:"| @@"`
	Renumber *PairRef    `parser:"| 'renumber' @@"`
	Link     *LinkStmt   `parser:"| @@"`
	Sync     bool        `parser:"| @'sync'"`
	Show     *PairRef    `parser:"| 'show' @@"`
	Changes  bool        `parser:"| @'changes'"`
	Expect   *ExpectStmt `parser:"| 'expect' @@"`
}

// Kind returns the statement keyword.
func (s *Statement) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Set != nil:
		return "set"
	case s.Remove != nil:
		return "remove"
	case s.Drop != nil:
		return "drop"
	case s.Group != nil:
		return s.Group.Op
	case s.Ratio != nil:
		return "ratio"
	case s.Renumber != nil:
		return "renumber"
	case s.Link != nil:
		return "link"
	case s.Sync:
		return "sync"
	case s.Show != nil:
		return "show"
	case s.Changes:
		return "changes"
	case s.Expect != nil:
		return "expect " + s.Expect.Kind()
	default:
		return "unknown"
	}
}

// PairRef names a point pair in the caller's direction.
type PairRef struct {
	P1 string `parser:"@Ident"`
	P2 string `parser:"@Ident"`
}

func (p PairRef) String() string {
	return p.P1 + " " + p.P2
}

// VarRef selects a variable: the main variable of a pair, or with
// "/id" the variable hosting constraint id.
type VarRef struct {
	Pair PairRef `parser:"@@"`
	ID   *string `parser:"( '/' @Ident )?"`
}

func (v VarRef) String() string {
	if v.ID != nil {
		return v.Pair.String() + "/" + *v.ID
	}
	return v.Pair.String()
}

// SetStmt posts or replaces a constraint.
type SetStmt struct {
	Pair    PairRef      `parser:"'set' @@"`
	ID      string       `parser:"@Ident"`
	Options []*SetOption `parser:"@@*"`
}

// SetOption is one keyword argument of a set statement.
type SetOption struct {
	Priority  *string  `parser:"  'priority' @Number"`
	Min       *string  `parser:"| 'min' @Number"`
	Max       *string  `parser:"| 'max' @Number"`
	Stability *string  `parser:"| 'stability' @Ident"`
	Prefer    *string  `parser:"| 'prefer' @Ident"`
	Groups    []string `parser:"| 'groups' '(' @Ident ( ',' @Ident )* ')'"`
}

// RemoveStmt removes one constraint.
type RemoveStmt struct {
	Pair PairRef `parser:"'remove' @@"`
	ID   string  `parser:"@Ident"`
}

// GroupStmt adds a constraint to an or-group or takes it out of one.
type GroupStmt struct {
	Op    string  `parser:"@( 'join' | 'leave' )"`
	Pair  PairRef `parser:"@@"`
	ID    string  `parser:"@Ident"`
	Group string  `parser:"@Ident"`
}

// RatioStmt sets the ratio of a pair's offset to its variable.
type RatioStmt struct {
	Pair  PairRef `parser:"'ratio' @@"`
	Ratio string  `parser:"@Number"`
}

// LinkStmt makes one pair share another pair's variable.
type LinkStmt struct {
	Pair   PairRef `parser:"'link' @@"`
	Target PairRef `parser:"'to' @@"`
	Ratio  *string `parser:"@Number?"`
}

// ExpectStmt asserts on ledger state.
type ExpectStmt struct {
	Min       *ValueExpect     `parser:"  'min' @@"`
	Max       *ValueExpect     `parser:"| 'max' @@"`
	Stability *StabilityExpect `parser:"| 'stability' @@"`
	Hosts     *HostsExpect     `parser:"| 'hosts' @@"`
	Groups    *GroupsExpect    `parser:"| 'groups' @@"`
	Clones    *string          `parser:"| 'clones' @Number"`
	Allows    *AllowsExpect    `parser:"| 'allows' @@"`
	Satisfies *SatisfiesExpect `parser:"| 'satisfies' @@"`
}

// Kind returns the expectation keyword.
func (e *ExpectStmt) Kind() string {
	switch {
	case e.Min != nil:
		return "min"
	case e.Max != nil:
		return "max"
	case e.Stability != nil:
		return "stability"
	case e.Hosts != nil:
		return "hosts"
	case e.Groups != nil:
		return "groups"
	case e.Clones != nil:
		return "clones"
	case e.Allows != nil:
		return "allows"
	case e.Satisfies != nil:
		return "satisfies"
	default:
		return "unknown"
	}
}

// ValueExpect compares an effective bound.
type ValueExpect struct {
	Ref   VarRef `parser:"@@"`
	Value string `parser:"@Number"`
}

// StabilityExpect compares the aggregate stability priorities.
type StabilityExpect struct {
	Ref         VarRef `parser:"@@"`
	NonDecrease string `parser:"@Number"`
	NonIncrease string `parser:"@Number"`
}

// HostsExpect compares the number of variables a pair occupies.
type HostsExpect struct {
	Pair  PairRef `parser:"@@"`
	Count string  `parser:"@Number"`
}

// GroupsExpect compares the or-groups present on a variable.
type GroupsExpect struct {
	Ref    VarRef   `parser:"@@"`
	Groups []string `parser:"'(' ( @Ident ( ',' @Ident )* )? ')'"`
}

// AllowsExpect compares the rendered answer of a movement query.
type AllowsExpect struct {
	Ref    VarRef `parser:"@@"`
	Dir    string `parser:"@( 'up' | 'down' )"`
	Target string `parser:"@Number"`
	Want   string `parser:"@String"`
}

// SatisfiesExpect compares the rendered satisfaction of one or-group.
type SatisfiesExpect struct {
	Ref    VarRef  `parser:"@@"`
	Value  string  `parser:"@Number"`
	Group  string  `parser:"@Ident"`
	Stable *string `parser:"( 'stable' @Number )?"`
	Want   string  `parser:"@String"`
}

// Parse reads a script from r. name is used in positions and errors.
func Parse(name string, r io.Reader) (*Script, error) {
	s, err := scriptParser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	return s, nil
}

// ParseString parses a script held in memory.
func ParseString(name, src string) (*Script, error) {
	s, err := scriptParser.ParseString(name, src)
	if err != nil {
		return nil, fmt.Errorf("ParseString: %w", err)
	}
	return s, nil
}

// ParseFile parses the script at path.
func ParseFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ParseFile: %w", err)
	}
	defer f.Close()
	return Parse(path, f)
}
