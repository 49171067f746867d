package segledger

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	eq := NewMemoryEquations()
	l, err := NewLedger(eq, &Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Metrics: m})
	require.NoError(t, err)

	mustSet(t, l, "a", "b", "A", minSpec(1, 20))
	mustSet(t, l, "a", "b", "B", maxSpec(1, 15))
	mustSet(t, l, "a", "b", "S", ConstraintSpec{Priority: 1, Stability: StabilityMin, OrGroups: OrGroups("g")})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ConstraintsSet))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClonesCreated.WithLabelValues(cloneKindRange)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClonesCreated.WithLabelValues(cloneKindStability)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Variables))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Pairs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrGroups))

	l.RemoveConstraint("a", "b", "B")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConstraintsRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClonesRetired))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Variables))

	eq.Renumber("a", "b")
	l.SyncEquations()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairRehomes))

	l.RemovePair("a", "b")
	assert.Zero(t, testutil.ToFloat64(m.Variables))
	assert.Zero(t, testutil.ToFloat64(m.Pairs))
	assert.Zero(t, testutil.ToFloat64(m.OrGroups))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestNilMetricsAreIgnored(t *testing.T) {
	var m *Metrics
	m.constraintSet()
	m.cloneCreated(cloneKindRange)
	m.variableRetired(true)
}
