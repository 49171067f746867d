package segledger

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Ledger records range, stability and or-group constraints on the offsets
// of point pairs and answers the questions a relaxation solver asks about
// them.
//
// Conflicting bounds on one variable are never rejected. The constraint
// that would conflict is moved onto a clone variable obtained from the
// equation layer, which keeps the clone equal to its origin. Stability
// constraints never share a variable with range constraints.
//
// Every mutation that can change what a variable's constraints allow marks
// the variable in the change ledger; the solver drains it once per cycle.
//
// Thread safety: a Ledger is guarded by a read/write mutex, but the intended
// use is one writer and no mutation while a solving pass queries it.
type Ledger struct {
	mu sync.RWMutex

	id      string
	eq      EquationLayer
	logger  *slog.Logger
	metrics *Metrics

	pairs       map[PairID]*pairEntry
	pairKeys    map[[2]PointID]PairID
	vars        map[VariableID]*variableEntry
	cloneOrigin map[VariableID]VariableID
	groups      *orGroupIndex
	changes     *ChangeLedger

	// touched collects variables and pairs edited by the current
	// operation so they can be retired once it completes.
	touched      map[VariableID]struct{}
	touchedPairs map[PairID]struct{}
}

// NewLedger creates an empty ledger on top of eq. A nil cfg uses
// DefaultConfig().
func NewLedger(eq EquationLayer, cfg *Config) (*Ledger, error) {
	if eq == nil {
		return nil, fmt.Errorf("NewLedger: %w", ErrNilEquationLayer)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	return &Ledger{
		id:           id,
		eq:           eq,
		logger:       logger.With("ledger", id),
		metrics:      cfg.Metrics,
		pairs:        make(map[PairID]*pairEntry),
		pairKeys:     make(map[[2]PointID]PairID),
		vars:         make(map[VariableID]*variableEntry),
		cloneOrigin:  make(map[VariableID]VariableID),
		groups:       newOrGroupIndex(),
		changes:      NewChangeLedger(),
		touched:      make(map[VariableID]struct{}),
		touchedPairs: make(map[PairID]struct{}),
	}, nil
}

// ID returns the ledger's instance identifier.
func (l *Ledger) ID() string {
	return l.id
}

// Changes returns the change ledger the solver drains.
func (l *Ledger) Changes() *ChangeLedger {
	return l.changes
}

// DrainChanges returns the variables whose constraints may have changed
// since the last drain, sorted, and clears the set.
func (l *Ledger) DrainChanges() []VariableID {
	return l.changes.DrainChanges()
}

// settle finishes a mutation: pairs with no constraints are discarded,
// pairs with no stability constraint forget their stability host, and
// empty variables are retired.
func (l *Ledger) settle() {
	for id := range l.touchedPairs {
		pair, ok := l.pairs[id]
		if !ok {
			continue
		}
		if pair.stabilityCount == 0 {
			pair.stabilityHost = NoVariable
		}
		if len(pair.constraints) == 0 {
			delete(l.pairs, id)
			delete(l.pairKeys, pointsKey(pair.points[0], pair.points[1]))
			l.metrics.pairRetired()
			l.logger.Debug("retired pair", "pair", string(id))
		}
	}
	clear(l.touchedPairs)
	l.retireEmptyVariables()
}

// Stats summarises the ledger's size.
type Stats struct {
	Pairs       int
	Constraints int
	Variables   int
	Clones      int
	OrGroups    int
}

// Stats returns the current table sizes.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		Pairs:     len(l.pairs),
		Variables: len(l.vars),
		Clones:    len(l.cloneOrigin),
		OrGroups:  len(l.groups.groups),
	}
	for _, p := range l.pairs {
		s.Constraints += len(p.constraints)
	}
	return s
}
