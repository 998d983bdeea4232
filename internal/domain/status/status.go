// Package status defines lifecycle states for agent runs.
package status

import "errors"

// Status represents the lifecycle status of a single question/answer run.
type Status string

const (
	StatusPending Status = "pending" // Accepted, waiting for a run slot
	StatusRunning Status = "running" // Executor is stepping through nodes

	// Terminal states
	StatusCompleted       Status = "completed"        // Router reached END
	StatusFailed          Status = "failed"           // Capability client or internal failure
	StatusCancelled       Status = "cancelled"        // Caller went away between steps
	StatusBudgetExhausted Status = "budget_exhausted" // Step budget consumed before END
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// IsTerminal returns true if the run can no longer make progress.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusBudgetExhausted:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ValidTransitions defines allowed status transitions.
var ValidTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled, StatusBudgetExhausted},
}

// CanTransitionTo checks if a transition from the current status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to the target status.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// ErrorSeverity indicates how a step error is handled by the executor.
type ErrorSeverity string

const (
	ErrorSeverityRecoverable ErrorSeverity = "recoverable" // Rendered into the log, run continues
	ErrorSeverityFatal       ErrorSeverity = "fatal"       // Run stops, partial log returned
)

// String returns the string representation of the error severity.
func (e ErrorSeverity) String() string {
	return string(e)
}

// IsRecoverable returns true if the run may continue past the error.
func (e ErrorSeverity) IsRecoverable() bool {
	return e == ErrorSeverityRecoverable
}

// IsFatal returns true if the error ends the run.
func (e ErrorSeverity) IsFatal() bool {
	return e == ErrorSeverityFatal
}
