// Package metrics exposes prometheus/client_golang instrumentation for the
// dispatcher, auth pipeline and queue, grounded on the ambient prometheus
// usage across the rest of the reference corpus (arkeep-io-arkeep,
// streamspace-dev-streamspace, wisbric-nightowl all instrument their HTTP
// servers this way; the teacher carries no metrics package of its own).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups the metrics agentbridge exports at GET /metrics.
type Registry struct {
	QueueDepth       *prometheus.GaugeVec
	DispatchLatency  prometheus.Histogram
	AuthOutcomes     *prometheus.CounterVec
	CommandsByStatus *prometheus.CounterVec
	LongPollActive   prometheus.Gauge
}

// New registers and returns a Registry against reg.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentbridge",
			Name:      "queue_depth",
			Help:      "Number of queued commands per deployment.",
		}, []string{"deployment_hash"}),
		DispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentbridge",
			Name:      "dispatch_latency_seconds",
			Help:      "Time between command enqueue and agent claim.",
			Buckets:   prometheus.DefBuckets,
		}),
		AuthOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentbridge",
			Name:      "auth_outcomes_total",
			Help:      "Authentication attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		CommandsByStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentbridge",
			Name:      "commands_total",
			Help:      "Commands transitioned, by resulting status.",
		}, []string{"status"}),
		LongPollActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentbridge",
			Name:      "long_poll_active",
			Help:      "Number of agent long-poll connections currently held open.",
		}),
	}
}
