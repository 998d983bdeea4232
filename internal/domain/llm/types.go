// Package llm defines the contract the graph uses to reach a language model.
package llm

import (
	"context"
	"errors"

	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/tool"
)

// ForcingMode tells the model whether it must request a tool.
type ForcingMode string

const (
	// ModeFree lets the model answer with text or with tool calls.
	ModeFree ForcingMode = "free"
	// ModeForcedAny requires at least one tool call in the response.
	ModeForcedAny ForcingMode = "forced_any"
)

// ErrEmptyResponse is returned when the provider sends no choices back.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Request is one model invocation.
type Request struct {
	Messages []message.Message
	Tools    []tool.Descriptor
	Mode     ForcingMode
}

// Client generates one assistant message for a request. Implementations are
// stateless and safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, req Request) (message.Message, error)
}

// ClientFunc adapts a function into a Client.
type ClientFunc func(ctx context.Context, req Request) (message.Message, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req Request) (message.Message, error) {
	return f(ctx, req)
}
