package tools

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finsight/fpagent/llm"
)

// InstrumentedExecutor wraps an Executor and records per-tool call
// counts and latencies.
type InstrumentedExecutor struct {
	inner     Executor
	calls     *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewInstrumentedExecutor wraps an executor with metrics, registering
// the collectors on the given registerer.
func NewInstrumentedExecutor(inner Executor, reg prometheus.Registerer) *InstrumentedExecutor {
	e := &InstrumentedExecutor{
		inner: inner,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpagent_tool_calls_total",
			Help: "Tool calls by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fpagent_tool_call_duration_seconds",
			Help:    "Tool call latency by tool name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(e.calls, e.durations)
	}
	return e
}

// ListTools delegates to the inner executor.
func (e *InstrumentedExecutor) ListTools() []llm.ToolDefinition {
	return e.inner.ListTools()
}

// Execute runs the inner executor and records the call.
func (e *InstrumentedExecutor) Execute(ctx context.Context, call llm.ToolCall) (ToolResult, error) {
	started := time.Now()
	result, err := e.inner.Execute(ctx, call)
	e.durations.WithLabelValues(call.Name).Observe(time.Since(started).Seconds())

	outcome := "ok"
	if err != nil || result.IsError {
		outcome = "error"
	}
	e.calls.WithLabelValues(call.Name, outcome).Inc()
	return result, err
}
