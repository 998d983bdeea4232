package graph

import (
	"context"

	errs "github.com/janhq/sql-agent/internal/domain/errors"
	"github.com/janhq/sql-agent/internal/domain/status"
)

// Instrumentation receives run and node lifecycle events. Implementations
// attach tracing spans and metrics.
type Instrumentation interface {
	StartRun(ctx context.Context, runID string, stepBudget int) (context.Context, func(status.Status, error))
	StartNode(ctx context.Context, runID string, node NodeID, step int) (context.Context, func(error))
	Recovered(ctx context.Context, node NodeID, err *errs.StepError)
}

// NopInstrumentation discards every event.
type NopInstrumentation struct{}

// StartRun implements Instrumentation.
func (NopInstrumentation) StartRun(ctx context.Context, _ string, _ int) (context.Context, func(status.Status, error)) {
	return ctx, func(status.Status, error) {}
}

// StartNode implements Instrumentation.
func (NopInstrumentation) StartNode(ctx context.Context, _ string, _ NodeID, _ int) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// Recovered implements Instrumentation.
func (NopInstrumentation) Recovered(context.Context, NodeID, *errs.StepError) {}
