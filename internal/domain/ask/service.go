// Package ask turns questions into workflow runs and collects their outputs.
package ask

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/janhq/sql-agent/internal/domain/graph"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/status"
)

var (
	// ErrBusy is returned when no run slot frees up within the acquire timeout.
	ErrBusy = errors.New("too many concurrent runs")
	// ErrInvalidStepBudget is returned when a request asks for more steps than allowed.
	ErrInvalidStepBudget = errors.New("invalid step budget")
)

// Runner is the part of graph.Executor the service drives.
type Runner interface {
	Stream(ctx context.Context, question string, opts ...graph.RunOption) iter.Seq2[graph.Snapshot, error]
}

// Redactor masks sensitive substrings before they reach the logs.
type Redactor interface {
	Redact(text string) string
}

type passthrough struct{}

func (passthrough) Redact(text string) string { return text }

// Config bounds the service.
type Config struct {
	MaxConcurrentRuns int64
	AcquireTimeout    time.Duration
	MaxStepBudget     int
}

// Request is one question.
type Request struct {
	Question   string `json:"question"`
	StepBudget int    `json:"step_budget,omitempty"`
	RunID      string `json:"run_id,omitempty"`
}

// Answer is the collected outcome of a run. Outputs holds the content of the
// last message of every snapshot, starting with the question itself.
type Answer struct {
	RunID    string            `json:"run_id"`
	Status   status.Status     `json:"status"`
	Steps    int               `json:"steps"`
	Outputs  []string          `json:"outputs"`
	Final    string            `json:"final"`
	Messages []message.Message `json:"-"`
}

// Event is one streamed step.
type Event struct {
	RunID  string       `json:"run_id"`
	Step   int          `json:"step"`
	Node   graph.NodeID `json:"node"`
	Next   graph.NodeID `json:"next"`
	Output string       `json:"output"`
}

// Service runs questions through the workflow with bounded concurrency.
type Service struct {
	runner         Runner
	sem            *semaphore.Weighted
	acquireTimeout time.Duration
	maxStepBudget  int
	redactor       Redactor
	log            zerolog.Logger
}

// NewService creates the ask service.
func NewService(runner Runner, cfg Config, redactor Redactor, log zerolog.Logger) *Service {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 16
	}
	if redactor == nil {
		redactor = passthrough{}
	}
	return &Service{
		runner:         runner,
		sem:            semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		acquireTimeout: cfg.AcquireTimeout,
		maxStepBudget:  cfg.MaxStepBudget,
		redactor:       redactor,
		log:            log.With().Str("component", "ask-service").Logger(),
	}
}

// Ask runs req to completion. The returned Answer is non-nil whenever the run
// started, including when it failed.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	return s.Stream(ctx, req, nil)
}

// Stream runs req and calls onEvent after every snapshot. An error from
// onEvent stops the run and is returned as is.
func (s *Service) Stream(ctx context.Context, req Request, onEvent func(Event) error) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, graph.ErrEmptyQuestion
	}
	if req.StepBudget < 0 {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidStepBudget)
	}
	if s.maxStepBudget > 0 && req.StepBudget > s.maxStepBudget {
		return nil, fmt.Errorf("%w: must not exceed %d", ErrInvalidStepBudget, s.maxStepBudget)
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	opts := []graph.RunOption{graph.WithStepBudget(req.StepBudget), graph.WithRunID(req.RunID)}
	log := s.log.With().Str("question", s.redactor.Redact(question)).Logger()
	log.Info().Int("step_budget", req.StepBudget).Msg("run started")

	answer := &Answer{Status: status.StatusRunning, Outputs: []string{}}
	var runErr error
	for snap, err := range s.runner.Stream(ctx, question, opts...) {
		answer.RunID = snap.RunID
		answer.Steps = snap.Step
		answer.Messages = snap.Messages
		if err != nil {
			runErr = err
			break
		}

		output := ""
		if last, ok := snap.Last(); ok {
			output = last.Content
		}
		answer.Outputs = append(answer.Outputs, output)

		if onEvent != nil {
			if cbErr := onEvent(Event{RunID: snap.RunID, Step: snap.Step, Node: snap.Node, Next: snap.Next, Output: output}); cbErr != nil {
				answer.Status = status.StatusCancelled
				answer.Final = finalOf(answer.Outputs)
				log.Info().Err(cbErr).Str("run_id", answer.RunID).Msg("run stopped by consumer")
				return answer, cbErr
			}
		}
	}

	answer.Final = finalOf(answer.Outputs)
	answer.Status = graph.StatusFor(runErr)
	event := log.Info()
	if runErr != nil {
		event = log.Warn().Err(runErr)
	}
	event.Str("run_id", answer.RunID).Str("status", answer.Status.String()).Int("steps", answer.Steps).Msg("run finished")
	return answer, runErr
}

func (s *Service) acquire(ctx context.Context) error {
	acquireCtx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	if err := s.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
	return nil
}

func finalOf(outputs []string) string {
	for i := len(outputs) - 1; i >= 0; i-- {
		if strings.TrimSpace(outputs[i]) != "" {
			return outputs[i]
		}
	}
	return ""
}
