// Copyright 2024-2026 Aiku AI

package connector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors. Each Metrics owns a
// private registry so several bridges (or tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	InboundEvents    prometheus.Counter
	InboundMalformed prometheus.Counter
	StoreErrors      *prometheus.CounterVec
	LastSequence     prometheus.Gauge
	Reconnects       prometheus.Counter
	CommandsSent     prometheus.Counter
	CommandsDropped  *prometheus.CounterVec
}

// NewMetrics creates and registers the bridge collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		InboundEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "inbound_events_total",
			Help:      "IRC lines recorded to the history list.",
		}),
		InboundMalformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "inbound_malformed_total",
			Help:      "IRC lines skipped because they could not be parsed.",
		}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "store_errors_total",
			Help:      "Failed store operations, by operation.",
		}, []string{"op"}),
		LastSequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircbridge",
			Name:      "last_sequence",
			Help:      "Sequence number assigned to the most recent inbound event.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts after the IRC stream ended.",
		}),
		CommandsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "commands_sent_total",
			Help:      "Outbound commands written to the IRC connection.",
		}),
		CommandsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircbridge",
			Name:      "commands_dropped_total",
			Help:      "Outbound queue entries discarded, by reason.",
		}, []string{"reason"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
