// Package metrics exposes Prometheus counters for archive loads and branch moves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load outcomes.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// Move outcomes.
const (
	OutcomeMoved    = "moved"
	OutcomeBoundary = "boundary"
	OutcomeRejected = "rejected"
)

type Metrics struct {
	conversations *prometheus.CounterVec
	moves         *prometheus.CounterVec
	loaded        prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		conversations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "conversations_opened_total",
			Help:      "Conversations opened from archives, by outcome.",
		}, []string{"status"}),
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "branch_moves_total",
			Help:      "Branch switch commands, by direction and outcome.",
		}, []string{"direction", "outcome"}),
		loaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbor",
			Name:      "conversations_loaded",
			Help:      "Conversations in the currently loaded archive.",
		}),
	}
}

func (m *Metrics) ConversationOpened(status string) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(status).Inc()
}

func (m *Metrics) BranchMoved(direction, outcome string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) SetLoaded(n int) {
	if m == nil {
		return
	}
	m.loaded.Set(float64(n))
}
