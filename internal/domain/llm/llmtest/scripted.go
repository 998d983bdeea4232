// Package llmtest provides deterministic llm.Client doubles for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/message"
)

// Response configures one model turn in a scripted sequence.
type Response struct {
	Message message.Message
	Err     error
}

// ScriptedClient replays responses in order and records every request.
type ScriptedClient struct {
	mu        sync.Mutex
	index     int
	responses []Response
	requests  []llm.Request
}

var _ llm.Client = (*ScriptedClient)(nil)

// NewScriptedClient returns a client that answers with responses in order.
func NewScriptedClient(responses ...Response) *ScriptedClient {
	cloned := make([]Response, len(responses))
	copy(cloned, responses)
	return &ScriptedClient{responses: cloned}
}

// Generate implements llm.Client.
func (c *ScriptedClient) Generate(_ context.Context, req llm.Request) (message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, cloneRequest(req))
	if c.index >= len(c.responses) {
		return message.Message{}, fmt.Errorf("script exhausted at call %d", c.index+1)
	}
	current := c.responses[c.index]
	c.index++
	if current.Err != nil {
		return message.Message{}, current.Err
	}
	msg := current.Message.Clone()
	if msg.Role == "" {
		msg.Role = message.RoleAssistant
	}
	if msg.ID == "" {
		msg.ID = message.NewID()
	}
	return msg, nil
}

// Requests returns every request received so far.
func (c *ScriptedClient) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Remaining returns how many scripted responses have not been consumed.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses) - c.index
}

// Text is a scripted plain assistant answer.
func Text(content string) Response {
	return Response{Message: message.Message{Role: message.RoleAssistant, Content: content}}
}

// Call is a scripted assistant turn requesting a single tool.
func Call(name string, args map[string]any) Response {
	return Response{Message: message.Message{
		Role:      message.RoleAssistant,
		ToolCalls: []message.ToolCall{{ID: message.NewCallID(), Name: name, Arguments: args}},
	}}
}

// Query is a scripted call to the query tool.
func Query(sql string) Response {
	return Call("db_query_tool", map[string]any{"query": sql})
}

// Fail is a scripted provider failure.
func Fail(err error) Response {
	return Response{Err: err}
}

func cloneRequest(req llm.Request) llm.Request {
	msgs := make([]message.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m.Clone()
	}
	req.Messages = msgs
	return req
}
