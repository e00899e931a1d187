package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/llm"
)

// Plan outcomes recorded by the orchestrator.
const (
	PlanStructured = "structured"
	PlanRepaired   = "repaired"
	PlanFreeText   = "free_text"
	PlanFailed     = "failed"
)

// Metrics holds the agent layer's Prometheus collectors.
type Metrics struct {
	decisions    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	plans        *prometheus.CounterVec
	degraded     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "agent_decisions_total",
			Help:      "Agent graph responses by agent and suggested action.",
		}, []string{"agent", "action"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "agent_node_duration_seconds",
			Help:      "Time spent in each graph node.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "tool_calls_total",
			Help:      "Tool calls serviced for the model.",
		}, []string{"tool"}),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "workout_plans_total",
			Help:      "Workout plan requests by outcome.",
		}, []string{"outcome"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "degraded_generations_total",
			Help:      "Generations that fell back to tagged error text.",
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.nodeDuration, m.toolCalls, m.plans, m.degraded)
	}
	return m
}

func (m *Metrics) observeNode(route Route, start time.Time, resp *domain.AgentResponse) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(string(route)).Observe(time.Since(start).Seconds())
	m.decisions.WithLabelValues(resp.AgentName, resp.SuggestedAction).Inc()
	if llm.IsErrorText(resp.Message) {
		m.degraded.WithLabelValues(string(route)).Inc()
	}
}

func (m *Metrics) toolCall(name string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(name).Inc()
}

func (m *Metrics) planOutcome(outcome string) {
	if m == nil {
		return
	}
	m.plans.WithLabelValues(outcome).Inc()
}
