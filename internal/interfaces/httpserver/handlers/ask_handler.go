package handlers

import (
	"context"
	"errors"

	"github.com/janhq/sql-agent/internal/domain/ask"
	"github.com/janhq/sql-agent/internal/domain/graph"
	"github.com/janhq/sql-agent/internal/utils/platformerrors"
)

// AskService is the domain surface the handler needs.
type AskService interface {
	Ask(ctx context.Context, req ask.Request) (*ask.Answer, error)
	Stream(ctx context.Context, req ask.Request, onEvent func(ask.Event) error) (*ask.Answer, error)
}

// AskHandler invokes the ask use case and classifies its failures.
type AskHandler struct {
	service AskService
}

// NewAskHandler wires dependencies for ask routes.
func NewAskHandler(service AskService) *AskHandler {
	return &AskHandler{
		service: service,
	}
}

// Ask runs a question to completion.
func (h *AskHandler) Ask(ctx context.Context, req ask.Request) (*ask.Answer, error) {
	answer, err := h.service.Ask(ctx, req)
	return answer, classify(ctx, err)
}

// Stream runs a question and reports every step to onEvent.
func (h *AskHandler) Stream(ctx context.Context, req ask.Request, onEvent func(ask.Event) error) (*ask.Answer, error) {
	answer, err := h.service.Stream(ctx, req, onEvent)
	return answer, classify(ctx, err)
}

func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, graph.ErrEmptyQuestion), errors.Is(err, ask.ErrInvalidStepBudget):
		return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, err.Error(), err, "")
	case errors.Is(err, ask.ErrBusy):
		return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeUnavailable, "the agent is busy, retry later", err, "")
	default:
		return platformerrors.FromRunError(ctx, platformerrors.LayerHandler, err)
	}
}
