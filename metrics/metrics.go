// Package metrics wires prometheus counters around the pipeline's drop,
// replay, and ticket outcomes. Grounded on the prometheus.NewRegistry +
// typed-metric-fields pattern a HealthLogger-style component uses,
// adapted from gauges tracking chain-state snapshots to counters
// tracking per-packet outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter this module exports. A node owns
// exactly one and passes it down to the pipeline package.
type Registry struct {
	registry *prometheus.Registry

	// Dropped counts packets dropped at transform, partitioned by a
	// caller-chosen reason label. the silent-drop class requires that reason never be
	// attacker-distinguishable over the wire or in logs, but nothing
	// stops an operator's own metrics from recording it locally.
	Dropped *prometheus.CounterVec

	// Forwarded and Delivered count successful terminal outcomes.
	Forwarded prometheus.Counter
	Delivered prometheus.Counter

	// ReplayHits counts packets rejected specifically because their tag
	// had already been seen (a subset of Dropped, broken out because
	// replay-hit rate is the signal an operator most wants alerting on).
	ReplayHits prometheus.Counter

	// TicketsWon and TicketsIssued track the probabilistic ticket
	// mechanism's observed win rate against its configured WinProb.
	TicketsIssued prometheus.Counter
	TicketsWon    prometheus.Counter
}

// NewRegistry builds and registers every counter against a fresh
// prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		registry: reg,
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hopr",
			Subsystem: "pipeline",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped during per-hop transform, by reason.",
		}, []string{"reason"}),
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hopr",
			Subsystem: "pipeline",
			Name:      "packets_forwarded_total",
			Help:      "Packets successfully peeled and forwarded to a next hop.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hopr",
			Subsystem: "pipeline",
			Name:      "packets_delivered_total",
			Help:      "Packets that reached their destination.",
		}),
		ReplayHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hopr",
			Subsystem: "pipeline",
			Name:      "replay_hits_total",
			Help:      "Packets dropped specifically due to a repeated replay tag.",
		}),
		TicketsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hopr",
			Subsystem: "ticket",
			Name:      "issued_total",
			Help:      "Pending tickets registered across all hops.",
		}),
		TicketsWon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hopr",
			Subsystem: "ticket",
			Name:      "won_total",
			Help:      "Tickets that won their probabilistic draw.",
		}),
	}

	reg.MustRegister(m.Dropped, m.Forwarded, m.Delivered, m.ReplayHits, m.TicketsIssued, m.TicketsWon)
	return m
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler
// (wiring a promhttp.Handler is left to the caller that owns the listener).
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.registry
}
