package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.StepBudget)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, ":8000", cfg.MCPAddr())
	assert.Equal(t, ToolSourceLocal, cfg.ToolSource)
	assert.Equal(t, 15, cfg.DBMaxOpenConns)
	assert.Equal(t, 5, cfg.DBMaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.DBConnLifetime)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STEP_BUDGET", "12")
	t.Setenv("TOOL_SOURCE", "MCP")
	t.Setenv("MCP_TRANSPORT", "sse")
	t.Setenv("MCP_SERVER_URL", "http://tools:8000/sse")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.StepBudget)
	assert.Equal(t, ToolSourceMCP, cfg.ToolSource)
	assert.Equal(t, MCPTransportSSE, cfg.MCPTransport)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_NonPositiveBudgetFallsBack(t *testing.T) {
	t.Setenv("STEP_BUDGET", "0")
	t.Setenv("TOP_K", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.StepBudget)
	assert.Equal(t, 5, cfg.TopK)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown tool source", map[string]string{"TOOL_SOURCE": "grpc"}},
		{"unknown transport", map[string]string{"MCP_TRANSPORT": "websocket"}},
		{"auth without issuer", map[string]string{"AUTH_ENABLED": "true", "AUTH_JWKS_URL": "http://keys"}},
		{"auth without jwks", map[string]string{"AUTH_ENABLED": "true", "AUTH_ISSUER": "http://issuer"}},
		{"bad duration", map[string]string{"LLM_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
