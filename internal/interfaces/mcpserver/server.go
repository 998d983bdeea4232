// Package mcpserver exposes the SQL tools over the Model Context Protocol.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/janhq/sql-agent/internal/domain/message"
	"github.com/janhq/sql-agent/internal/domain/tool"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver/responses"
	"github.com/janhq/sql-agent/internal/utils/platformerrors"
)

var allowedMCPMethods = map[string]bool{
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,
	"tools/list":                true,
	"tools/call":                true,
}

// Route serves the registry tools on /mcp (streamable HTTP) and /sse.
type Route struct {
	server      *mcpsdk.Server
	httpHandler http.Handler
	sseHandler  http.Handler
	log         zerolog.Logger
}

// NewRoute registers every tool of registry on a fresh MCP server.
func NewRoute(registry *tool.Registry, version string, log zerolog.Logger) *Route {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "sql-agent-tools", Version: version}, nil)
	route := &Route{
		server: server,
		log:    log.With().Str("component", "mcp-server").Logger(),
	}

	for _, desc := range registry.Descriptors() {
		schema := desc.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		server.AddTool(&mcpsdk.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: schema,
		}, route.handler(registry, desc.Name))
	}

	getServer := func(*http.Request) *mcpsdk.Server { return server }
	route.httpHandler = mcpsdk.NewStreamableHTTPHandler(getServer, &mcpsdk.StreamableHTTPOptions{Stateless: true})
	route.sseHandler = mcpsdk.NewSSEHandler(getServer, nil)
	return route
}

// Server returns the underlying MCP server.
func (route *Route) Server() *mcpsdk.Server {
	return route.server
}

func (route *Route) handler(registry *tool.Registry, name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return &mcpsdk.CallToolResult{
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: tool.ErrorText("arguments must be a JSON object")}},
					IsError: true,
				}, nil
			}
		}

		result := registry.Invoke(ctx, message.ToolCall{ID: message.NewCallID(), Name: name, Arguments: args})
		route.log.Debug().Str("tool", name).Bool("is_error", result.IsError()).Msg("mcp tool call")
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Text}},
			IsError: result.IsError(),
		}, nil
	}
}

// RegisterRouter mounts the MCP endpoints.
func (route *Route) RegisterRouter(router gin.IRouter) {
	router.POST("/mcp", MCPMethodGuard(allowedMCPMethods), route.serveMCP)
	router.GET("/sse", route.serveSSE)
	router.POST("/sse", route.serveSSE)
}

// serveMCP streams Model Context Protocol responses using the underlying MCP server.
func (route *Route) serveMCP(reqCtx *gin.Context) {
	// The go-sdk streamable handler rejects requests that do not accept both content types.
	reqCtx.Request.Header.Set("Accept", "application/json, text/event-stream")
	route.httpHandler.ServeHTTP(reqCtx.Writer, reqCtx.Request)
}

func (route *Route) serveSSE(reqCtx *gin.Context) {
	route.sseHandler.ServeHTTP(reqCtx.Writer, reqCtx.Request)
}

// MCPMethodGuard rejects JSON-RPC payloads whose method is not allowed.
func MCPMethodGuard(allowedMethods map[string]bool) gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		bodyBytes, err := io.ReadAll(reqCtx.Request.Body)
		if err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "failed to read MCP request body", "5b1c2f0e-8f34-4b52-9a63-0d7e3f2ab911")
			return
		}
		_ = reqCtx.Request.Body.Close()

		if len(bodyBytes) == 0 {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "empty MCP request body", "c2e0a7d4-61b9-4f1e-8d55-3a9c7b60f4e2")
			return
		}

		reqCtx.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var payload struct {
			Method string `json:"method"`
		}

		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid MCP request payload", "9f4d3b21-0c6e-4a8f-b7d2-e15a6c90d3f8")
			return
		}

		if payload.Method == "" {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "missing method field in MCP request", "1e7a9c53-d2b4-4f60-a8e1-6b3f0d92c7a5")
			return
		}

		if !allowedMethods[payload.Method] {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "unsupported MCP method: "+payload.Method, "7d2f8e16-b5a3-4c09-9e4b-2a6c1f83d0b7")
			return
		}

		reqCtx.Next()
	}
}
