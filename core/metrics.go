package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the small counter set the producer increments inline. No
// /metrics HTTP handler is wired here: full dashboards are the out-of-scope
// collaborator spec.md names; these counters are registered so a
// collaborator may expose them later.
type Metrics struct {
	BlocksProduced  prometheus.Counter
	TxsIncluded     prometheus.Counter
	ConsensusSeconds prometheus.Histogram
}

// NewMetrics registers the counter set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_blocks_produced_total",
			Help: "Total number of blocks produced by this node.",
		}),
		TxsIncluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_txs_included_total",
			Help: "Total number of transactions included in produced blocks.",
		}),
		ConsensusSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "meridian_consensus_seconds",
			Help: "Time spent in consensus.Produce per block.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.BlocksProduced, m.TxsIncluded, m.ConsensusSeconds)
	}
	return m
}
