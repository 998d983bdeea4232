// Package tool defines the uniform invocation contract for the capabilities
// the graph calls into.
package tool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/sql-agent/internal/domain/message"
)

// InvocationObserver is notified after every invocation.
type InvocationObserver func(toolName string, isError bool, elapsed time.Duration)

// Registry maps tool names to tools. It is immutable after construction and
// safe for concurrent use by many runs.
type Registry struct {
	tools       map[string]Tool
	callTimeout time.Duration
	observer    InvocationObserver
	log         zerolog.Logger
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithCallTimeout bounds every invocation.
func WithCallTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		r.callTimeout = timeout
	}
}

// WithObserver installs an invocation observer.
func WithObserver(observer InvocationObserver) RegistryOption {
	return func(r *Registry) {
		r.observer = observer
	}
}

// WithLogger sets the registry logger.
func WithLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log.With().Str("component", "tool-registry").Logger()
	}
}

// NewRegistry builds a registry from tools.
func NewRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		tools:       make(map[string]Tool, len(tools)),
		callTimeout: 30 * time.Second,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range tools {
		name := t.Descriptor().Name
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		r.tools[name] = t
	}
	return r, nil
}

// NewRegistryFromSource lists tools from source and registers them.
func NewRegistryFromSource(ctx context.Context, source Source, opts ...RegistryOption) (*Registry, error) {
	tools, err := source.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return NewRegistry(tools, opts...)
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Descriptors returns every registered descriptor sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs call and always returns a result. Unknown tools, errors, timeouts
// and panics are rendered as error text.
func (r *Registry) Invoke(ctx context.Context, call message.ToolCall) Result {
	start := time.Now()
	result := Result{CallID: call.ID, ToolName: call.Name}

	t, err := r.Resolve(call.Name)
	if err != nil {
		result.Text = ErrorText(err.Error())
	} else {
		result.Text = r.call(ctx, t, call)
	}
	if result.Text == "" {
		result.Text = ErrorText(fmt.Sprintf("%s returned no output", call.Name))
	}

	elapsed := time.Since(start)
	if r.observer != nil {
		r.observer(call.Name, result.IsError(), elapsed)
	}
	r.log.Debug().
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Bool("is_error", result.IsError()).
		Dur("elapsed", elapsed).
		Msg("tool invoked")
	return result
}

func (r *Registry) call(ctx context.Context, t Tool, call message.ToolCall) (text string) {
	callCtx := ctx
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("tool", call.Name).Interface("panic", rec).Msg("tool panicked")
			text = ErrorText(fmt.Sprintf("tool %s failed unexpectedly", call.Name))
		}
	}()

	out, err := t.Call(callCtx, call.Arguments)
	if err != nil {
		r.log.Warn().Err(err).Str("tool", call.Name).Msg("tool invocation fault")
		return ErrorText(err.Error())
	}
	return out
}

// Static is a Source over a fixed tool list.
type Static []Tool

// Tools implements Source.
func (s Static) Tools(context.Context) ([]Tool, error) {
	return s, nil
}
