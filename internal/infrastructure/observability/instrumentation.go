package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	errs "github.com/janhq/sql-agent/internal/domain/errors"
	"github.com/janhq/sql-agent/internal/domain/graph"
	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/status"
	"github.com/janhq/sql-agent/internal/domain/tool"
	"github.com/janhq/sql-agent/internal/infrastructure/metrics"
)

const meterName = "jan-server/sql-agent"

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

// GraphInstrumentation attaches spans, Prometheus metrics and OTel counters to
// graph runs.
type GraphInstrumentation struct {
	runCounter metric.Int64Counter
	nodeCount  metric.Int64Counter
}

var _ graph.Instrumentation = (*GraphInstrumentation)(nil)

// NewGraphInstrumentation builds the instrumentation used by the executor.
func NewGraphInstrumentation() *GraphInstrumentation {
	meter := otel.Meter(meterName)
	runCounter, _ := meter.Int64Counter("sql_agent.runs", metric.WithDescription("Graph runs by terminal status"))
	nodeCount, _ := meter.Int64Counter("sql_agent.node_executions", metric.WithDescription("Node executions"))
	return &GraphInstrumentation{
		runCounter: runCounter,
		nodeCount:  nodeCount,
	}
}

// StartRun implements graph.Instrumentation.
func (g *GraphInstrumentation) StartRun(ctx context.Context, runID string, stepBudget int) (context.Context, func(status.Status, error)) {
	ctx, span := StartRunSpan(ctx, runID, stepBudget)
	metrics.RunsInFlight.Inc()
	start := time.Now()

	return ctx, func(runStatus status.Status, err error) {
		RecordError(span, err, "fatal")
		span.SetAttributes(attribute.String("run.status", runStatus.String()))
		span.End()

		metrics.RunsInFlight.Dec()
		metrics.RecordRun(runStatus.String(), time.Since(start).Seconds())
		if g.runCounter != nil {
			g.runCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", runStatus.String())))
		}
	}
}

// StartNode implements graph.Instrumentation.
func (g *GraphInstrumentation) StartNode(ctx context.Context, runID string, node graph.NodeID, step int) (context.Context, func(error)) {
	ctx, span := StartNodeSpan(ctx, runID, node.String(), step)
	start := time.Now()

	return ctx, func(err error) {
		RecordError(span, err, "fatal")
		span.End()

		metrics.RecordNode(node.String(), outcome(err != nil), time.Since(start).Seconds())
		if g.nodeCount != nil {
			g.nodeCount.Add(context.Background(), 1, metric.WithAttributes(attribute.String("node", node.String())))
		}
	}
}

// Recovered implements graph.Instrumentation.
func (g *GraphInstrumentation) Recovered(ctx context.Context, node graph.NodeID, err *errs.StepError) {
	AddRecoveredEvent(trace.SpanFromContext(ctx), err.Code, err.Message)
	metrics.RecordRecoveredFault(node.String(), err.Code)
}

// ToolObserver records tool invocations in Prometheus.
func ToolObserver() tool.InvocationObserver {
	return func(toolName string, isError bool, elapsed time.Duration) {
		metrics.RecordToolCall(toolName, outcome(isError), elapsed.Seconds())
	}
}

// InstrumentedLLM wraps a client with spans and call metrics.
type InstrumentedLLM struct {
	next  llm.Client
	model string
}

var _ llm.Client = (*InstrumentedLLM)(nil)

// InstrumentLLM decorates client.
func InstrumentLLM(client llm.Client, model string) *InstrumentedLLM {
	return &InstrumentedLLM{next: client, model: model}
}

// Generate implements llm.Client.
func (c *InstrumentedLLM) Generate(ctx context.Context, req llm.Request) (message.Message, error) {
	ctx, span := StartLLMSpan(ctx, c.model, string(req.Mode), len(req.Messages))
	defer span.End()
	start := time.Now()

	msg, err := c.next.Generate(ctx, req)
	metrics.RecordLLMCall(string(req.Mode), outcome(err != nil), time.Since(start).Seconds())
	if err != nil {
		RecordError(span, err, "fatal")
		return msg, err
	}
	span.SetAttributes(attribute.Int("llm.tool_calls", len(msg.ToolCalls)))
	return msg, nil
}
