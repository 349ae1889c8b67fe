// Package metrics provides Prometheus metrics for the console.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "candidate_console"

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the console. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Presence metrics
	PresencePolls      *prometheus.CounterVec
	PresenceHeartbeats *prometheus.CounterVec

	// Workflow metrics
	WorkflowTransitions *prometheus.CounterVec

	// Store metrics
	StoreMutations *prometheus.CounterVec
}

// New creates the metrics on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PresencePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_polls_total",
			Help:      "Total number of online-status polls by result",
		}, []string{"result"}),
		PresenceHeartbeats: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_heartbeats_total",
			Help:      "Total number of activity heartbeats by trigger and result",
		}, []string{"trigger", "result"}),
		WorkflowTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Total number of action workflow state transitions",
		}, []string{"kind", "state"}),
		StoreMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Total number of candidate store mutations by operation",
		}, []string{"op"}),
	}
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PresencePoll(result string) {
	if m == nil {
		return
	}
	m.PresencePolls.WithLabelValues(result).Inc()
}

func (m *Metrics) PresenceHeartbeat(trigger, result string) {
	if m == nil {
		return
	}
	m.PresenceHeartbeats.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) WorkflowTransition(kind, state string) {
	if m == nil {
		return
	}
	m.WorkflowTransitions.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) StoreMutation(op string) {
	if m == nil {
		return
	}
	m.StoreMutations.WithLabelValues(op).Inc()
}
