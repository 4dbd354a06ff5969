// Package metrics exposes Prometheus collectors for scheduler steps and
// provider calls. A nil *Metrics is a valid no-op receiver so components
// can be wired without metrics in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one engine instance.
type Metrics struct {
	steps      *prometheus.CounterVec
	stepErrors *prometheus.CounterVec
	calls      *prometheus.CounterVec
	callTokens *prometheus.CounterVec
	callTime   *prometheus.HistogramVec
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moonhollow",
			Name:      "scheduler_steps_total",
			Help:      "Scheduler steps processed, by phase.",
		}, []string{"phase"}),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moonhollow",
			Name:      "scheduler_step_errors_total",
			Help:      "Step failures, by error kind.",
		}, []string{"kind"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moonhollow",
			Name:      "agent_calls_total",
			Help:      "Provider calls, by provider, model and outcome.",
		}, []string{"provider", "model", "outcome"}),
		callTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moonhollow",
			Name:      "agent_tokens_total",
			Help:      "Tokens consumed, by provider, model and direction.",
		}, []string{"provider", "model", "direction"}),
		callTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "moonhollow",
			Name:      "agent_call_seconds",
			Help:      "Provider call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider", "model"}),
	}
	reg.MustRegister(m.steps, m.stepErrors, m.calls, m.callTokens, m.callTime)
	return m
}

// Step records one processed step.
func (m *Metrics) Step(phase string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(phase).Inc()
}

// StepError records a step failure by taxonomy kind.
func (m *Metrics) StepError(kind string) {
	if m == nil {
		return
	}
	m.stepErrors.WithLabelValues(kind).Inc()
}

// Call records one provider call with its latency and token usage.
func (m *Metrics) Call(provider, model, outcome string, seconds float64, inTokens, outTokens int64) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(provider, model, outcome).Inc()
	m.callTime.WithLabelValues(provider, model).Observe(seconds)
	m.callTokens.WithLabelValues(provider, model, "input").Add(float64(inTokens))
	m.callTokens.WithLabelValues(provider, model, "output").Add(float64(outTokens))
}
