// Package bootstrap assembles the agent from configuration. The HTTP server,
// the MCP tool server and the CLI share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/sql-agent/internal/config"
	"github.com/janhq/sql-agent/internal/domain/ask"
	"github.com/janhq/sql-agent/internal/domain/graph"
	"github.com/janhq/sql-agent/internal/domain/prompt"
	"github.com/janhq/sql-agent/internal/domain/tool"
	"github.com/janhq/sql-agent/internal/infrastructure/database"
	"github.com/janhq/sql-agent/internal/infrastructure/llmprovider"
	"github.com/janhq/sql-agent/internal/infrastructure/mcp"
	"github.com/janhq/sql-agent/internal/infrastructure/metrics"
	"github.com/janhq/sql-agent/internal/infrastructure/observability"
	"github.com/janhq/sql-agent/internal/infrastructure/sqltools"
)

// Version is reported to MCP peers.
const Version = "1.0.0"

// Agent holds every long lived component of one process.
type Agent struct {
	Config   *config.Config
	Pool     *database.Pool
	Registry *tool.Registry
	LLM      *llmprovider.Client
	Executor *graph.Executor
	Ask      *ask.Service

	closers []func() error
}

// DatabaseConfig maps the service configuration onto the pool settings.
func DatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:              cfg.DatabaseURL,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		MaxOpenConns:     cfg.DBMaxOpenConns,
		ConnMaxLifetime:  cfg.DBConnLifetime,
		PingTimeout:      cfg.DBPingTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
		ReadOnly:         cfg.DBReadOnly,
		MaxResultRows:    cfg.MaxResultRows,
		LogLevel:         gormlogger.Warn,
	}
}

// NewLocalToolkit connects to the target database and builds the SQL tools
// over it. The caller owns the returned pool.
func NewLocalToolkit(cfg *config.Config, log zerolog.Logger) (*sqltools.Toolkit, *database.Pool, error) {
	pool, err := database.NewPool(DatabaseConfig(cfg), log, database.WithReconnectHook(metrics.RecordDBReconnect))
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	cache, err := sqltools.NewSchemaCache(cfg.SchemaCacheSize, cfg.SchemaCacheTTL)
	if err != nil {
		_ = pool.Close()
		return nil, nil, fmt.Errorf("schema cache: %w", err)
	}
	toolkit := sqltools.NewToolkit(database.NewCatalog(pool), sqltools.Options{
		SampleRows: cfg.SampleRows,
		Cache:      cache,
		Logger:     log,
	})
	return toolkit, pool, nil
}

// NewRegistry resolves the configured tool source into a registry.
func NewRegistry(ctx context.Context, cfg *config.Config, source tool.Source, log zerolog.Logger) (*tool.Registry, error) {
	return tool.NewRegistryFromSource(ctx, source,
		tool.WithCallTimeout(cfg.ToolCallTimeout),
		tool.WithObserver(observability.ToolObserver()),
		tool.WithLogger(log),
	)
}

// Build wires the agent for cfg. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Agent, error) {
	agent := &Agent{Config: cfg}

	var source tool.Source
	switch cfg.ToolSource {
	case config.ToolSourceMCP:
		remote, err := mcp.NewSource(mcp.Options{
			Endpoint:  cfg.MCPServerURL,
			Transport: cfg.MCPTransport,
			Version:   Version,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("mcp tool source: %w", err)
		}
		agent.closers = append(agent.closers, remote.Close)
		source = remote
	default:
		toolkit, pool, err := NewLocalToolkit(cfg, log)
		if err != nil {
			return nil, err
		}
		agent.Pool = pool
		agent.closers = append(agent.closers, pool.Close)
		source = toolkit.Source()
	}

	registry, err := NewRegistry(ctx, cfg, source, log)
	if err != nil {
		_ = agent.Close()
		return nil, fmt.Errorf("load tools: %w", err)
	}
	agent.Registry = registry

	prompts, err := prompt.Load(cfg.PromptsFile, prompt.Params{Dialect: cfg.SQLDialect, TopK: cfg.TopK})
	if err != nil {
		_ = agent.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	agent.LLM = llmprovider.NewClient(llmprovider.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
	}, log)

	executor, err := graph.NewExecutor(graph.Config{
		LLM:             observability.InstrumentLLM(agent.LLM, cfg.LLMModel),
		Tools:           registry,
		Prompts:         prompts,
		StepBudget:      cfg.StepBudget,
		Instrumentation: observability.NewGraphInstrumentation(),
		Logger:          log,
	})
	if err != nil {
		_ = agent.Close()
		return nil, err
	}
	agent.Executor = executor

	agent.Ask = ask.NewService(executor, ask.Config{
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		AcquireTimeout:    cfg.RunAcquireTimeout,
		MaxStepBudget:     cfg.MaxStepBudget,
	}, observability.NewRedactor(cfg.PIILevel, cfg.ServiceName), log)

	return agent, nil
}

// Readiness returns the dependency checks behind /readyz.
func (a *Agent) Readiness() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"llm": a.LLM.CheckModel,
	}
	if a.Pool != nil {
		checks["database"] = a.Pool.Ping
	}
	return checks
}

// Close releases the database pool or the MCP session.
func (a *Agent) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
