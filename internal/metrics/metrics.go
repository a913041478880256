// Package metrics exposes ledger counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

// Ledger counts quantity mutations and their failures.
type Ledger struct {
	updates  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewLedger registers the ledger counters on reg.
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "quantity_updates_total",
			Help:      "Quantity mutations committed, by mode.",
		}, []string{"mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bakery",
			Name:      "ledger_failures_total",
			Help:      "Quantity mutations rejected or rolled back, by kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.updates, m.failures)
	}
	return m
}

// Updated records n committed quantity changes.
func (m *Ledger) Updated(mode string, n int) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(mode).Add(float64(n))
}

// Failed records one failed mutation of the given kind.
func (m *Ledger) Failed(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}
