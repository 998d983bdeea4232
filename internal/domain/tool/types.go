package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/janhq/sql-agent/internal/domain/message"
)

// Names of the capabilities the SQL graph depends on.
const (
	ListTablesToolName = "list_tables_tool"
	SchemaToolName     = "sql_db_schema"
	QueryToolName      = "db_query_tool"
)

// ErrorPrefix marks tool output that reports a failure.
const ErrorPrefix = "error:"

var (
	// ErrUnknownTool is returned when a tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrDuplicateTool is returned when two tools share a name.
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// Descriptor is the model facing description of a tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Tool is an invocable capability. Call may return an error; the registry
// renders it into text so callers never see it.
type Tool interface {
	Descriptor() Descriptor
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Source lists the tools available to a graph. Local SQL tools and remote MCP
// tools both implement it.
type Source interface {
	Tools(ctx context.Context) ([]Tool, error)
}

// Result captures the outcome of one invocation.
type Result struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Text     string `json:"text"`
}

// IsError reports whether the text carries the error marker.
func (r Result) IsError() bool {
	return IsErrorText(r.Text)
}

// Message converts the result into the tool turn appended to the log.
func (r Result) Message() (message.Message, error) {
	return message.NewToolResult(r.CallID, r.ToolName, r.Text)
}

// IsErrorText reports whether tool output starts with the error marker.
func IsErrorText(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), ErrorPrefix)
}

// ErrorText renders msg with the error marker unless it already has one.
func ErrorText(msg string) string {
	msg = strings.TrimSpace(msg)
	if IsErrorText(msg) {
		return msg
	}
	return ErrorPrefix + " " + msg
}

// Func adapts a plain function into a Tool.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, args map[string]any) (string, error)
}

// Descriptor implements Tool.
func (f Func) Descriptor() Descriptor {
	return f.Desc
}

// Call implements Tool.
func (f Func) Call(ctx context.Context, args map[string]any) (string, error) {
	return f.Fn(ctx, args)
}
