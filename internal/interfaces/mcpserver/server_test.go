package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/sql-agent/internal/domain/tool"
)

func newTestRoute(t *testing.T) *gin.Engine {
	t.Helper()
	registry, err := tool.NewRegistry([]tool.Tool{
		tool.Func{
			Desc: tool.Descriptor{Name: tool.ListTablesToolName, InputSchema: map[string]any{"type": "object"}},
			Fn: func(context.Context, map[string]any) (string, error) {
				return "orders", nil
			},
		},
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewRoute(registry, "test", zerolog.Nop()).RegisterRouter(router)
	return router
}

func TestMCPMethodGuard(t *testing.T) {
	router := newTestRoute(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "empty MCP request body"},
		{"invalid json", "{", "invalid MCP request payload"},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, "missing method field"},
		{"unsupported method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, "unsupported MCP method: resources/list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}
