// In file: internal/metrics/metrics.go

// Package metrics exposes prometheus instruments for chat turns, model calls and
// tool executions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics groups every instrument of the service. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns         *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelTokens   *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	persistErrors prometheus.Counter
}

// New creates the instruments on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "agent", Name: "turns_total",
			Help: "Chat turns by outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hub", Subsystem: "agent", Name: "turn_duration_seconds",
			Help:    "Duration of a whole chat turn.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "llm", Name: "calls_total",
			Help: "Model calls by model and status.",
		}, []string{"model", "status"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hub", Subsystem: "llm", Name: "call_duration_seconds",
			Help:    "Latency of a single model call.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		}, []string{"model"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "llm", Name: "tokens_total",
			Help: "Tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "tools", Name: "executions_total",
			Help: "Tool executions by tool and result.",
		}, []string{"tool", "result"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hub", Subsystem: "tools", Name: "execution_duration_seconds",
			Help:    "Latency of a single tool execution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "transcript", Name: "write_errors_total",
			Help: "Transcript writes that failed and were dropped.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turns, m.turnDuration,
		m.modelCalls, m.modelDuration, m.modelTokens,
		m.toolCalls, m.toolDuration,
		m.persistErrors,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Turn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

func (m *Metrics) ModelCall(model string, d time.Duration, promptTokens, completionTokens int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelCalls.WithLabelValues(model, status).Inc()
	m.modelDuration.WithLabelValues(model).Observe(d.Seconds())
	if promptTokens > 0 {
		m.modelTokens.WithLabelValues(model, "input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.modelTokens.WithLabelValues(model, "output").Add(float64(completionTokens))
	}
}

func (m *Metrics) ToolExecution(tool string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) TranscriptWriteFailed() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}
