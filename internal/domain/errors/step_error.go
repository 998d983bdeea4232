// Package errors defines error types and classification for graph execution.
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/janhq/sql-agent/internal/domain/status"
)

// StepError represents an error raised while executing a graph node.
type StepError struct {
	Code     string               `json:"code"`
	Message  string               `json:"message"`
	Severity status.ErrorSeverity `json:"severity"`
	Node     string               `json:"node,omitempty"`
	RunID    string               `json:"run_id,omitempty"`
	Step     int                  `json:"step,omitempty"`
	Cause    error                `json:"-"`
	Details  map[string]any       `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns true if the node can turn the error into log content.
func (e *StepError) IsRecoverable() bool {
	return e.Severity.IsRecoverable()
}

// IsFatal returns true if the error should fail the whole run.
func (e *StepError) IsFatal() bool {
	return e.Severity.IsFatal()
}

// NewStepError creates a new step error.
func NewStepError(code, message string, severity status.ErrorSeverity) *StepError {
	return &StepError{
		Code:     code,
		Message:  message,
		Severity: severity,
	}
}

// WithCause adds an underlying cause to the error.
func (e *StepError) WithCause(cause error) *StepError {
	e.Cause = cause
	return e
}

// WithNodeContext records where in the run the error happened.
func (e *StepError) WithNodeContext(runID, node string, step int) *StepError {
	e.RunID = runID
	e.Node = node
	e.Step = step
	return e
}

// WithDetails adds additional details to the error.
func (e *StepError) WithDetails(details map[string]any) *StepError {
	e.Details = details
	return e
}

// Error codes.
const (
	// Recoverable: converted into log content by the node that observed them
	ErrCodeToolInvocation  = "TOOL_INVOCATION_FAULT"
	ErrCodeMissingQuery    = "MISSING_QUERY"
	ErrCodeForcedToolCall  = "FORCED_TOOL_CALL_VIOLATION"
	ErrCodeUnknownToolCall = "UNKNOWN_TOOL_CALL"

	// Fatal: propagate out of the executor
	ErrCodeRecursionLimit   = "RECURSION_LIMIT_EXCEEDED"
	ErrCodeCapabilityClient = "CAPABILITY_CLIENT_FAULT"
	ErrCodeCancelled        = "RUN_CANCELLED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeSystemError      = "SYSTEM_ERROR"
)

// Code returns the StepError code carried by err, or an empty string.
func Code(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether err carries the given StepError code.
func HasCode(err error, code string) bool {
	return Code(err) == code
}

// Classifier classifies errors into severity levels.
type Classifier struct {
	rules []ClassificationRule
}

// ClassificationRule defines a rule for classifying errors.
type ClassificationRule struct {
	Match    func(error) bool
	Severity status.ErrorSeverity
}

// NewClassifier creates a new error classifier with default rules.
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.rules = append(c.rules, ClassificationRule{
		Match: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		Severity: status.ErrorSeverityFatal,
	})
	return c
}

// AddRule adds a classification rule.
func (c *Classifier) AddRule(rule ClassificationRule) {
	c.rules = append(c.rules, rule)
}

// Classify determines the severity of an error. Unclassified errors are fatal.
func (c *Classifier) Classify(err error) status.ErrorSeverity {
	if err == nil {
		return ""
	}

	var se *StepError
	if errors.As(err, &se) {
		return se.Severity
	}

	for _, rule := range c.rules {
		if rule.Match(err) {
			return rule.Severity
		}
	}

	return status.ErrorSeverityFatal
}

// Wrap wraps an error with a code and severity.
func Wrap(err error, code, message string, severity status.ErrorSeverity) *StepError {
	return &StepError{
		Code:     code,
		Message:  message,
		Severity: severity,
		Cause:    err,
	}
}

// WrapRecoverable wraps an error that a node will render into the log.
func WrapRecoverable(err error, code, message string) *StepError {
	return Wrap(err, code, message, status.ErrorSeverityRecoverable)
}

// WrapFatal wraps an error that ends the run.
func WrapFatal(err error, code, message string) *StepError {
	return Wrap(err, code, message, status.ErrorSeverityFatal)
}
