// File: internal/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xkilldash9x/migrator"

var (
	// LLMCalls counts provider calls by node and mode (stream, invoke, synthesized).
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "migrator",
		Name:      "llm_calls_total",
		Help:      "Model provider calls by node, mode and outcome.",
	}, []string{"node", "mode", "outcome"})

	// ToolCalls counts terminal tool call states by tool name.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "migrator",
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool and terminal status.",
	}, []string{"tool", "status"})

	// CacheLookups counts disk cache reads by hit or miss.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "migrator",
		Name:      "cache_lookups_total",
		Help:      "Replay cache lookups by result.",
	}, []string{"result"})

	// WorkflowMessages counts emitted workflow messages by type.
	WorkflowMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "migrator",
		Name:      "workflow_messages_total",
		Help:      "Workflow messages published by type.",
	}, []string{"type"})

	// FilesFixed tracks per-file fix outcomes.
	FilesFixed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "migrator",
		Name:      "files_fixed_total",
		Help:      "Files processed by the fix orchestrator by outcome.",
	}, []string{"outcome"})
)

// Tracer returns the named tracer for a component. Spans are no-ops unless the
// host installs an SDK tracer provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + component)
}
