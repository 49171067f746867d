package segledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors a ledger reports to. One Metrics
// value may be shared by several ledgers; gauges are moved by deltas so they
// sum across them.
type Metrics struct {
	ConstraintsSet     prometheus.Counter
	ConstraintsRemoved prometheus.Counter
	ClonesCreated      *prometheus.CounterVec
	ClonesRetired      prometheus.Counter
	PairRehomes        prometheus.Counter
	Variables          prometheus.Gauge
	Pairs              prometheus.Gauge
	OrGroups           prometheus.Gauge
}

// NewMetrics creates the ledger collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConstraintsSet: f.NewCounter(prometheus.CounterOpts{
			Name: "segledger_constraints_set_total",
			Help: "Number of setConstraint calls that posted a constraint",
		}),
		ConstraintsRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "segledger_constraints_removed_total",
			Help: "Number of constraints removed from the ledger",
		}),
		ClonesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segledger_clones_created_total",
			Help: "Number of clone variables requested from the equation layer",
		}, []string{"kind"}),
		ClonesRetired: f.NewCounter(prometheus.CounterOpts{
			Name: "segledger_clones_retired_total",
			Help: "Number of clone variables retired after their last constraint left",
		}),
		PairRehomes: f.NewCounter(prometheus.CounterOpts{
			Name: "segledger_pair_rehomes_total",
			Help: "Number of pairs re-homed after an equation layer change",
		}),
		Variables: f.NewGauge(prometheus.GaugeOpts{
			Name: "segledger_variables",
			Help: "Number of variables carrying at least one constraint",
		}),
		Pairs: f.NewGauge(prometheus.GaugeOpts{
			Name: "segledger_pairs",
			Help: "Number of pairs carrying at least one constraint",
		}),
		OrGroups: f.NewGauge(prometheus.GaugeOpts{
			Name: "segledger_or_groups",
			Help: "Number of or-groups with at least one member",
		}),
	}
}

const (
	cloneKindRange     = "range"
	cloneKindStability = "stability"
)

// The helpers below let the ledger report unconditionally.

func (m *Metrics) constraintSet() {
	if m != nil {
		m.ConstraintsSet.Inc()
	}
}

func (m *Metrics) constraintRemoved() {
	if m != nil {
		m.ConstraintsRemoved.Inc()
	}
}

func (m *Metrics) cloneCreated(kind string) {
	if m != nil {
		m.ClonesCreated.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) variableCreated() {
	if m != nil {
		m.Variables.Inc()
	}
}

func (m *Metrics) variableRetired(clone bool) {
	if m == nil {
		return
	}
	m.Variables.Dec()
	if clone {
		m.ClonesRetired.Inc()
	}
}

func (m *Metrics) pairCreated() {
	if m != nil {
		m.Pairs.Inc()
	}
}

func (m *Metrics) pairRetired() {
	if m != nil {
		m.Pairs.Dec()
	}
}

func (m *Metrics) pairRehomed() {
	if m != nil {
		m.PairRehomes.Inc()
	}
}

func (m *Metrics) groupCreated() {
	if m != nil {
		m.OrGroups.Inc()
	}
}

func (m *Metrics) groupRetired() {
	if m != nil {
		m.OrGroups.Dec()
	}
}
