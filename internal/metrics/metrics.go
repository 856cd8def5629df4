// Package metrics exposes the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics methods are nil-safe so components can run without a
// collector set (unit tests, the reference clients).
type Metrics struct {
	OnlineIdentities    prometheus.Gauge
	PresenceTransitions *prometheus.CounterVec
	SignalMessages      *prometheus.CounterVec
	RelayDrops          prometheus.Counter
	LedgerWriteFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		OnlineIdentities: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "overseer_online_identities",
			Help: "Current number of identities with a live binding",
		}),
		PresenceTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "overseer_presence_transitions_total",
			Help: "Total presence flips emitted by the registry",
		}, []string{"online"}),
		SignalMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "overseer_signal_messages_total",
			Help: "Total signaling messages dispatched, by type",
		}, []string{"type"}),
		RelayDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "overseer_relay_drops_total",
			Help: "Total relay deliveries dropped on backpressure or closed connections",
		}),
		LedgerWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "overseer_ledger_write_failures_total",
			Help: "Total attendance ledger writes that failed and were not retried",
		}),
	}
}

func (m *Metrics) SetOnline(count int) {
	if m == nil {
		return
	}
	m.OnlineIdentities.Set(float64(count))
}

func (m *Metrics) IncPresenceTransition(online bool) {
	if m == nil {
		return
	}
	if online {
		m.PresenceTransitions.WithLabelValues("true").Inc()
		return
	}
	m.PresenceTransitions.WithLabelValues("false").Inc()
}

func (m *Metrics) IncSignalMessage(msgType string) {
	if m == nil {
		return
	}
	m.SignalMessages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) IncRelayDrops() {
	if m == nil {
		return
	}
	m.RelayDrops.Inc()
}

func (m *Metrics) IncLedgerWriteFailures() {
	if m == nil {
		return
	}
	m.LedgerWriteFailures.Inc()
}
