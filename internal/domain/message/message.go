// Package message defines the conversation turns exchanged between the graph,
// the language model and the SQL tools.
package message

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrInvalidMessage is returned when a message violates its shape rules.
var ErrInvalidMessage = errors.New("invalid message")

// ToolCall is a request, carried by an assistant message, to invoke a tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// StringArg returns the named argument when it is a string.
func (c ToolCall) StringArg(key string) (string, bool) {
	raw, ok := c.Arguments[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

// Message is one turn of a run.
//
// ID correlates turns: a revised assistant message reuses the ID of the message
// it supersedes. ToolCallID is set on tool results and names the call answered.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// NewID returns a fresh message identifier.
func NewID() string {
	return "msg_" + uuid.NewString()
}

// NewCallID returns a fresh tool call identifier.
func NewCallID() string {
	return "call_" + uuid.NewString()
}

// NewSystem builds a system message.
func NewSystem(content string) Message {
	return Message{ID: NewID(), Role: RoleSystem, Content: content}
}

// NewUser builds a user message.
func NewUser(content string) Message {
	return Message{ID: NewID(), Role: RoleUser, Content: content}
}

// NewAssistant builds an assistant message. Every call must name a tool;
// calls without an ID are assigned one.
func NewAssistant(content string, calls ...ToolCall) (Message, error) {
	msg := Message{ID: NewID(), Role: RoleAssistant, Content: content}
	for i, call := range calls {
		if strings.TrimSpace(call.Name) == "" {
			return Message{}, fmt.Errorf("%w: tool call %d has no name", ErrInvalidMessage, i)
		}
		if call.ID == "" {
			call.ID = NewCallID()
		}
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	return msg, nil
}

// NewToolResult builds the message answering callID.
func NewToolResult(callID, toolName, content string) (Message, error) {
	msg := Message{ID: NewID(), Role: RoleTool, Content: content, ToolCallID: callID, Name: toolName}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// WithID returns a copy of m carrying id.
func (m Message) WithID(id string) Message {
	m.ID = id
	return m
}

// HasToolCalls reports whether the message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Validate checks the per-role shape rules.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser:
		if m.HasToolCalls() {
			return fmt.Errorf("%w: %s message cannot carry tool calls", ErrInvalidMessage, m.Role)
		}
	case RoleAssistant:
		for i, call := range m.ToolCalls {
			if call.Name == "" || call.ID == "" {
				return fmt.Errorf("%w: tool call %d needs a name and an id", ErrInvalidMessage, i)
			}
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("%w: tool result without call id", ErrInvalidMessage)
		}
		if m.Content == "" {
			return fmt.Errorf("%w: tool result without content", ErrInvalidMessage)
		}
		if m.HasToolCalls() {
			return fmt.Errorf("%w: tool result cannot carry tool calls", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, m.Role)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	return nil
}

// Clone returns a deep copy so callers cannot alias log storage.
func (m Message) Clone() Message {
	if m.ToolCalls == nil {
		return m
	}
	calls := make([]ToolCall, len(m.ToolCalls))
	for i, call := range m.ToolCalls {
		call.Arguments = maps.Clone(call.Arguments)
		calls[i] = call
	}
	m.ToolCalls = calls
	return m
}
