package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	errs "github.com/janhq/sql-agent/internal/domain/errors"
	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/prompt"
	"github.com/janhq/sql-agent/internal/domain/status"
	"github.com/janhq/sql-agent/internal/domain/tool"
)

// DefaultStepBudget is the number of node executions allowed per run.
const DefaultStepBudget = 50

var (
	// ErrRecursionLimitExceeded is returned when a run exhausts its step budget.
	ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")
	// ErrRunCancelled is returned when the caller cancels a run between steps.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrEmptyQuestion is returned when a run is started without a question.
	ErrEmptyQuestion = errors.New("question is required")
)

// Config carries the dependencies of an Executor.
type Config struct {
	LLM             llm.Client
	Tools           *tool.Registry
	Prompts         prompt.Prompts
	StepBudget      int
	Instrumentation Instrumentation
	Logger          zerolog.Logger
}

// Snapshot is the run state after one node execution. Messages is a copy of
// the full log.
type Snapshot struct {
	RunID    string            `json:"run_id"`
	Step     int               `json:"step"`
	Node     NodeID            `json:"node"`
	Next     NodeID            `json:"next"`
	Messages []message.Message `json:"messages"`
}

// Last returns the final message of the snapshot.
func (s Snapshot) Last() (message.Message, bool) {
	if len(s.Messages) == 0 {
		return message.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Result is the outcome of a drained run. It is returned together with run
// level errors so partial logs stay inspectable.
type Result struct {
	RunID    string            `json:"run_id"`
	Status   status.Status     `json:"status"`
	Steps    int               `json:"steps"`
	Messages []message.Message `json:"messages"`
	Final    string            `json:"final"`
}

// RunOption customises one run.
type RunOption func(*runOptions)

type runOptions struct {
	budget int
	runID  string
}

// WithStepBudget overrides the configured budget for one run.
func WithStepBudget(budget int) RunOption {
	return func(o *runOptions) {
		if budget > 0 {
			o.budget = budget
		}
	}
}

// WithRunID sets the identifier used in logs, spans and snapshots.
func WithRunID(runID string) RunOption {
	return func(o *runOptions) {
		if runID != "" {
			o.runID = runID
		}
	}
}

// Executor drives the SQL workflow. It holds no per-run state and is safe for
// concurrent use.
type Executor struct {
	graph  *Graph
	budget int
	instr  Instrumentation
	log    zerolog.Logger
}

// NewExecutor resolves the tools the workflow needs and compiles the graph.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.LLM == nil {
		return nil, errors.New("graph: llm client is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("graph: tool registry is required")
	}
	if cfg.Instrumentation == nil {
		cfg.Instrumentation = NopInstrumentation{}
	}
	if cfg.Prompts.QueryGeneration == "" {
		cfg.Prompts = prompt.Default(prompt.Params{})
	}
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = DefaultStepBudget
	}
	log := cfg.Logger.With().Str("component", "graph-executor").Logger()

	s := &steps{
		client:   cfg.LLM,
		registry: cfg.Tools,
		prompts:  cfg.Prompts,
		instr:    cfg.Instrumentation,
		log:      log,
	}
	for name, dst := range map[string]*tool.Descriptor{
		tool.ListTablesToolName: &s.listTables,
		tool.SchemaToolName:     &s.schema,
		tool.QueryToolName:      &s.query,
	} {
		t, err := cfg.Tools.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("graph: %w", err)
		}
		*dst = t.Descriptor()
	}

	g := newGraph().
		addNode(NodeListTablesRequest, s.listTablesRequest).
		addNode(NodeListTablesExec, s.execPending(NodeListTablesExec, s.listTables)).
		addNode(NodeSchemaRequest, s.schemaRequest).
		addNode(NodeSchemaExec, s.execPending(NodeSchemaExec, s.schema)).
		addNode(NodeGenerateQuery, s.generateQuery).
		addNode(NodeCheckQuery, s.checkQuery).
		addNode(NodeRunQuery, s.execPending(NodeRunQuery, s.query)).
		addEdge(Start, NodeListTablesRequest).
		addEdge(NodeListTablesRequest, NodeListTablesExec).
		addEdge(NodeListTablesExec, NodeSchemaRequest).
		addConditionalEdge(NodeSchemaRequest, AfterSchemaRequest).
		addEdge(NodeSchemaExec, NodeGenerateQuery).
		addConditionalEdge(NodeGenerateQuery, ShouldContinue).
		addConditionalEdge(NodeCheckQuery, AfterCheck).
		addEdge(NodeRunQuery, NodeGenerateQuery)
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	return &Executor{
		graph:  g,
		budget: cfg.StepBudget,
		instr:  cfg.Instrumentation,
		log:    log,
	}, nil
}

// Graph exposes the compiled topology.
func (e *Executor) Graph() *Graph {
	return e.graph
}

// Stream runs the workflow lazily. The first snapshot holds only the seeded
// question. A non-nil error is always the last element and comes with the
// snapshot of the log at the time of failure.
func (e *Executor) Stream(ctx context.Context, question string, opts ...RunOption) iter.Seq2[Snapshot, error] {
	options := runOptions{budget: e.budget, runID: uuid.NewString()}
	for _, opt := range opts {
		opt(&options)
	}

	return func(yield func(Snapshot, error) bool) {
		if strings.TrimSpace(question) == "" {
			yield(Snapshot{RunID: options.runID, Node: Start}, errs.WrapFatal(ErrEmptyQuestion, errs.ErrCodeInvalidInput, "empty question"))
			return
		}

		ctx, finishRun := e.instr.StartRun(ctx, options.runID, options.budget)
		log := e.log.With().Str("run_id", options.runID).Logger()

		history, err := message.NewLog(message.NewUser(question))
		if err != nil {
			finishRun(status.StatusFailed, err)
			yield(Snapshot{RunID: options.runID, Node: Start}, err)
			return
		}

		current := e.graph.Entry()
		step := 0
		snapshot := func(node, next NodeID) Snapshot {
			return Snapshot{RunID: options.runID, Step: step, Node: node, Next: next, Messages: history.Messages()}
		}
		fail := func(node NodeID, err error) {
			var stepErr *errs.StepError
			if errors.As(err, &stepErr) && stepErr.Node == "" {
				stepErr.WithNodeContext(options.runID, node.String(), step)
			}
			runStatus := StatusFor(err)
			log.Warn().Err(err).Str("node", node.String()).Int("step", step).Str("status", runStatus.String()).Msg("run aborted")
			finishRun(runStatus, err)
			yield(snapshot(node, current), err)
		}

		if !yield(snapshot(Start, current), nil) {
			finishRun(status.StatusCancelled, nil)
			return
		}

		for current != End {
			if err := ctx.Err(); err != nil {
				fail(current, errs.WrapFatal(fmt.Errorf("%w: %w", ErrRunCancelled, err), errs.ErrCodeCancelled, "run cancelled between steps"))
				return
			}
			if step >= options.budget {
				fail(current, errs.WrapFatal(ErrRecursionLimitExceeded, errs.ErrCodeRecursionLimit,
					fmt.Sprintf("step budget of %d exhausted before reaching the end", options.budget)).
					WithDetails(map[string]any{"step_budget": options.budget}))
				return
			}

			node, ok := e.graph.Node(current)
			if !ok {
				fail(current, errs.WrapFatal(nil, errs.ErrCodeSystemError, fmt.Sprintf("node %q is not registered", current)))
				return
			}

			nodeCtx, finishNode := e.instr.StartNode(ctx, options.runID, current, step+1)
			appended, err := node(nodeCtx, history)
			if err == nil {
				err = history.Append(appended...)
			}
			finishNode(err)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = errs.WrapFatal(fmt.Errorf("%w: %w", ErrRunCancelled, err), errs.ErrCodeCancelled, "run cancelled during "+current.String())
				}
				fail(current, err)
				return
			}
			step++

			executed := current
			current = e.graph.Next(executed, history)
			log.Debug().Str("node", executed.String()).Str("next", current.String()).Int("step", step).Int("appended", len(appended)).Msg("node executed")

			if !yield(snapshot(executed, current), nil) {
				finishRun(status.StatusCancelled, nil)
				return
			}
		}

		log.Info().Int("steps", step).Msg("run completed")
		finishRun(status.StatusCompleted, nil)
	}
}

// Run drains Stream and returns the final state. On failure the returned
// Result still carries every message appended before the error.
func (e *Executor) Run(ctx context.Context, question string, opts ...RunOption) (*Result, error) {
	var last Snapshot
	for snap, err := range e.Stream(ctx, question, opts...) {
		last = snap
		if err != nil {
			return resultFrom(last, StatusFor(err)), err
		}
	}
	return resultFrom(last, status.StatusCompleted), nil
}

func resultFrom(snap Snapshot, runStatus status.Status) *Result {
	res := &Result{
		RunID:    snap.RunID,
		Status:   runStatus,
		Steps:    snap.Step,
		Messages: snap.Messages,
	}
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Content != "" {
			res.Final = snap.Messages[i].Content
			break
		}
	}
	return res
}

// StatusFor maps a run error to the terminal status it implies.
func StatusFor(err error) status.Status {
	switch {
	case err == nil:
		return status.StatusCompleted
	case errors.Is(err, ErrRecursionLimitExceeded):
		return status.StatusBudgetExhausted
	case errors.Is(err, ErrRunCancelled):
		return status.StatusCancelled
	default:
		return status.StatusFailed
	}
}
