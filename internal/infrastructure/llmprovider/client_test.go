package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/tool"
	"github.com/janhq/sql-agent/internal/utils/platformerrors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{BaseURL: server.URL + "/v1/", APIKey: "sk-test", Model: "deepseek-chat"}, zerolog.Nop())
}

func TestGenerate_SendsToolsAndParsesCalls(t *testing.T) {
	var received openai.ChatCompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: tool.SchemaToolName, Arguments: `{"table_names":"orders"}`},
					}},
				},
			}},
		})
	})

	prior, err := message.NewAssistant("", message.ToolCall{ID: "call_1", Name: tool.ListTablesToolName})
	require.NoError(t, err)
	result, err := message.NewToolResult("call_1", tool.ListTablesToolName, "orders")
	require.NoError(t, err)

	msg, err := client.Generate(context.Background(), llm.Request{
		Messages: []message.Message{message.NewUser("How many orders?"), prior, result},
		Tools:    []tool.Descriptor{{Name: tool.SchemaToolName, Description: "schema"}},
		Mode:     llm.ModeForcedAny,
	})
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat", received.Model)
	assert.Equal(t, "required", received.ToolChoice)
	require.Len(t, received.Tools, 1)
	assert.Equal(t, tool.SchemaToolName, received.Tools[0].Function.Name)
	require.Len(t, received.Messages, 3)
	assert.Equal(t, "{}", received.Messages[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_1", received.Messages[2].ToolCallID)

	assert.NotEqual(t, "chatcmpl-1", msg.ID)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, message.RoleAssistant, msg.Role)
	require.Len(t, msg.ToolCalls, 1)
	assert.NotEmpty(t, msg.ToolCalls[0].ID)
	table, ok := msg.ToolCalls[0].StringArg("table_names")
	assert.True(t, ok)
	assert.Equal(t, "orders", table)
}

func TestGenerate_FreeModeLeavesToolChoiceUnset(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"There are 3 orders."}}]}`))
	})

	msg, err := client.Generate(context.Background(), llm.Request{
		Messages: []message.Message{message.NewUser("How many orders?")},
		Tools:    []tool.Descriptor{{Name: tool.QueryToolName}},
		Mode:     llm.ModeFree,
	})
	require.NoError(t, err)
	assert.NotContains(t, received, "tool_choice")
	assert.Equal(t, "There are 3 orders.", msg.Content)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.HasToolCalls())
}

func TestGenerate_InvalidArgumentsAreDropped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"c1","type":"function","function":{"name":"db_query_tool","arguments":"{not json"}}]}}]}`))
	})

	msg, err := client.Generate(context.Background(), llm.Request{Messages: []message.Message{message.NewUser("q")}})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "c1", msg.ToolCalls[0].ID)
	assert.Nil(t, msg.ToolCalls[0].Arguments)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Generate(context.Background(), llm.Request{Messages: []message.Message{message.NewUser("q")}})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestGenerate_HTTPErrorIsExternal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	})

	_, err := client.Generate(context.Background(), llm.Request{Messages: []message.Message{message.NewUser("q")}})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCheckModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"deepseek-chat"}]}`))
	})
	assert.NoError(t, client.CheckModel(context.Background()))

	client.model = "other"
	err := client.CheckModel(context.Background())
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestEndpoint(t *testing.T) {
	c := &Client{baseURL: normalizeBaseURL(" https://api.example.com/v1/ ")}
	assert.Equal(t, "https://api.example.com/v1/chat/completions", c.endpoint("/chat/completions"))
	assert.Equal(t, "https://api.example.com/v1/models", c.endpoint("models"))
	assert.Equal(t, "http://other/x", c.endpoint("http://other/x"))
	assert.Equal(t, "https://api.example.com/v1", c.endpoint(""))
}

func TestGenerate_RepeatedCompletionIDsKeepMessagesDistinct(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-7",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						ID:       fmt.Sprintf("s%d", calls),
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: tool.SchemaToolName, Arguments: `{"table_names":"orders"}`},
					}},
				},
			}},
		})
	})

	history, err := message.NewLog(message.NewUser("How many orders?"))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		msg, err := client.Generate(context.Background(), llm.Request{Messages: history.Effective()})
		require.NoError(t, err)
		result, err := message.NewToolResult(msg.ToolCalls[0].ID, tool.SchemaToolName, "CREATE TABLE orders ()")
		require.NoError(t, err)
		require.NoError(t, history.Append(msg, result))
	}

	effective := history.Effective()
	require.Len(t, effective, 5)
	assert.NotEqual(t, effective[1].ID, effective[3].ID)
	for i, msg := range effective {
		if msg.Role == message.RoleTool {
			require.Greater(t, i, 0)
			prev := effective[i-1]
			require.Len(t, prev.ToolCalls, 1)
			assert.Equal(t, prev.ToolCalls[0].ID, msg.ToolCallID)
		}
	}
}
