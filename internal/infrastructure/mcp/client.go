// Package mcp reaches the SQL tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/janhq/sql-agent/internal/domain/tool"
)

// Transport kinds.
const (
	TransportStreamable = "streamable"
	TransportSSE        = "sse"
)

// Options configures the remote tool source.
type Options struct {
	Endpoint  string
	Transport string
	Version   string
}

// Source lists and calls tools served by a remote MCP server. The session is
// opened lazily and replaced once when a call fails on a broken session.
type Source struct {
	client       *mcpsdk.Client
	newTransport func() (mcpsdk.Transport, error)
	log          zerolog.Logger

	mu      sync.Mutex
	session *mcpsdk.ClientSession
}

var _ tool.Source = (*Source)(nil)

// NewSource validates opts and prepares a client. No connection is made yet.
func NewSource(opts Options, log zerolog.Logger) (*Source, error) {
	endpoint, err := normalizeHTTPURL(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid endpoint: %w", err)
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	var build func() (mcpsdk.Transport, error)
	switch strings.ToLower(strings.TrimSpace(opts.Transport)) {
	case "", TransportStreamable:
		build = func() (mcpsdk.Transport, error) {
			return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil
		}
	case TransportSSE:
		build = func() (mcpsdk.Transport, error) {
			return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
		}
	default:
		return nil, fmt.Errorf("mcp: unsupported transport %q", opts.Transport)
	}

	return newSource(build, version, log), nil
}

func newSource(build func() (mcpsdk.Transport, error), version string, log zerolog.Logger) *Source {
	return &Source{
		client:       mcpsdk.NewClient(&mcpsdk.Implementation{Name: "sql-agent", Version: version}, nil),
		newTransport: build,
		log:          log.With().Str("component", "mcp-client").Logger(),
	}
}

// Tools implements tool.Source.
func (s *Source) Tools(ctx context.Context) ([]tool.Tool, error) {
	session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	var tools []tool.Tool
	for remote, err := range session.Tools(ctx, nil) {
		if err != nil {
			s.resetSession(session)
			return nil, fmt.Errorf("mcp: list tools: %w", err)
		}
		desc, err := toDescriptor(remote)
		if err != nil {
			return nil, err
		}
		tools = append(tools, &remoteTool{source: s, desc: desc})
	}
	s.log.Info().Int("tools", len(tools)).Msg("remote tools discovered")
	return tools, nil
}

// Close ends the current session.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

func (s *Source) ensureSession(ctx context.Context) (*mcpsdk.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session, nil
	}

	transport, err := s.newTransport()
	if err != nil {
		return nil, fmt.Errorf("mcp: build transport: %w", err)
	}
	session, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}
	s.session = session
	return session, nil
}

func (s *Source) resetSession(stale *mcpsdk.ClientSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != stale {
		return
	}
	_ = stale.Close()
	s.session = nil
}

func (s *Source) call(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	params := &mcpsdk.CallToolParams{Name: name, Arguments: args}
	if args == nil {
		params.Arguments = map[string]any{}
	}

	session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	result, err := session.CallTool(ctx, params)
	if err == nil || ctx.Err() != nil {
		return result, err
	}

	s.log.Warn().Err(err).Str("tool", name).Msg("mcp call failed, reopening session")
	s.resetSession(session)
	session, rerr := s.ensureSession(ctx)
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	return session.CallTool(ctx, params)
}

type remoteTool struct {
	source *Source
	desc   tool.Descriptor
}

func (t *remoteTool) Descriptor() tool.Descriptor {
	return t.desc
}

func (t *remoteTool) Call(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.source.call(ctx, t.desc.Name, args)
	if err != nil {
		return "", err
	}
	text := resultText(result)
	if result.IsError {
		if text == "" {
			text = t.desc.Name + " failed"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func toDescriptor(remote *mcpsdk.Tool) (tool.Descriptor, error) {
	desc := tool.Descriptor{Name: remote.Name, Description: remote.Description}
	if remote.InputSchema == nil {
		return desc, nil
	}
	raw, err := json.Marshal(remote.InputSchema)
	if err != nil {
		return desc, fmt.Errorf("mcp: encode schema of %s: %w", remote.Name, err)
	}
	if err := json.Unmarshal(raw, &desc.InputSchema); err != nil {
		return desc, fmt.Errorf("mcp: decode schema of %s: %w", remote.Name, err)
	}
	return desc, nil
}

func resultText(result *mcpsdk.CallToolResult) string {
	if result == nil {
		return ""
	}
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func normalizeHTTPURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}
