package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/janhq/sql-agent/internal/domain/llm"
	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/tool"
	"github.com/janhq/sql-agent/internal/utils/platformerrors"
)

const defaultTimeout = 75 * time.Second

// Options configures the OpenAI compatible chat client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client implements llm.Client against an OpenAI compatible
// /chat/completions endpoint.
type Client struct {
	httpClient  *resty.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	log         zerolog.Logger
}

var _ llm.Client = (*Client)(nil)

// NewClient creates a Resty-backed client.
func NewClient(opts Options, log zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: resty.New().
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		baseURL:     normalizeBaseURL(opts.BaseURL),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		log:         log.With().Str("component", "llm-provider").Logger(),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req llm.Request) (message.Message, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return message.Message{}, err
	}

	var completion openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx).
		SetBody(body).
		SetResult(&completion).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return message.Message{}, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "chat completion request failed", err, "")
	}
	if resp.IsError() {
		return message.Message{}, c.errorFromResponse(ctx, resp, "chat completion request failed")
	}
	if len(completion.Choices) == 0 {
		return message.Message{}, llm.ErrEmptyResponse
	}

	return c.toMessage(completion.ID, completion.Choices[0].Message), nil
}

func (c *Client) buildRequest(req llm.Request) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted, err := toOpenAIMessage(msg)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, converted)
	}

	body := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	}
	for _, desc := range req.Tools {
		body.Tools = append(body.Tools, toOpenAITool(desc))
	}
	if len(body.Tools) > 0 && req.Mode == llm.ModeForcedAny {
		body.ToolChoice = "required"
	}
	return body, nil
}

func toOpenAIMessage(msg message.Message) (openai.ChatCompletionMessage, error) {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	for _, call := range msg.ToolCalls {
		args := "{}"
		if len(call.Arguments) > 0 {
			raw, err := json.Marshal(call.Arguments)
			if err != nil {
				return openai.ChatCompletionMessage{}, fmt.Errorf("encode arguments of %s: %w", call.Name, err)
			}
			args = string(raw)
		}
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}
	return out, nil
}

func toOpenAITool(desc tool.Descriptor) openai.Tool {
	params := desc.InputSchema
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        desc.Name,
			Description: desc.Description,
			Parameters:  params,
		},
	}
}

func (c *Client) toMessage(responseID string, choice openai.ChatCompletionMessage) message.Message {
	msg := message.Message{
		ID:      message.NewID(),
		Role:    message.RoleAssistant,
		Content: choice.Content,
	}
	// Providers may reuse completion ids across calls, so they never become
	// message ids.
	c.log.Debug().Str("completion_id", responseID).Str("message_id", msg.ID).Msg("completion received")
	for _, call := range choice.ToolCalls {
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		var args map[string]any
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				c.log.Warn().Err(err).Str("tool", call.Function.Name).Msg("discarding unparsable tool arguments")
				args = nil
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, message.ToolCall{
			ID:        id,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return msg
}

func (c *Client) prepareRequest(ctx context.Context) *resty.Request {
	req := c.httpClient.R().SetContext(ctx)
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	return req
}

func (c *Client) endpoint(path string) string {
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) errorFromResponse(ctx context.Context, resp *resty.Response, msg string) error {
	detail := map[string]any{"status_code": resp.StatusCode()}
	trimmed := strings.TrimSpace(resp.String())
	if trimmed == "" {
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, msg, nil, "", detail)
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: %s", msg, trimmed), nil, "", detail)
}

func normalizeBaseURL(base string) string {
	trimmed := strings.TrimSpace(base)
	trimmed = strings.TrimRight(trimmed, "/")
	return trimmed
}
