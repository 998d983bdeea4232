package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "jan-server/sql-agent"
)

// GetTracer returns the tracer for the SQL agent.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// RunAttributes returns common attributes for run spans.
func RunAttributes(runID string, stepBudget int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.Int("run.step_budget", stepBudget),
	}
}

// NodeAttributes returns common attributes for node spans.
func NodeAttributes(runID, node string, step int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("node.run_id", runID),
		attribute.String("node.name", node),
		attribute.Int("node.step", step),
	}
}

// StartRunSpan starts a new span for a graph run.
func StartRunSpan(ctx context.Context, runID string, stepBudget int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "graph.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(RunAttributes(runID, stepBudget)...),
	)
}

// StartNodeSpan starts a new span for one node execution.
func StartNodeSpan(ctx context.Context, runID, node string, step int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "graph.node."+node,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(NodeAttributes(runID, node, step)...),
	)
}

// StartToolSpan starts a span for a tool invocation.
func StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "tool."+toolName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tool.name", toolName)),
	)
}

// StartLLMSpan starts a span for a language model call.
func StartLLMSpan(ctx context.Context, model, mode string, messages int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "llm.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.String("llm.mode", mode),
			attribute.Int("llm.messages", messages),
		),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, severity string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.severity", severity))
}

// AddRecoveredEvent marks a fault that was rendered into the log.
func AddRecoveredEvent(span trace.Span, code, detail string) {
	span.AddEvent("fault.recovered",
		trace.WithAttributes(
			attribute.String("fault.code", code),
			attribute.String("fault.detail", detail),
		),
	)
}
