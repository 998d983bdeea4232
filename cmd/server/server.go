package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/janhq/sql-agent/internal/bootstrap"
	"github.com/janhq/sql-agent/internal/config"
	"github.com/janhq/sql-agent/internal/infrastructure/auth"
	"github.com/janhq/sql-agent/internal/infrastructure/logger"
	"github.com/janhq/sql-agent/internal/infrastructure/observability"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver/handlers"
)

// @title SQL Agent API
// @version 1.0
// @description Answers natural language questions by generating, checking and running SQL against a PostgreSQL database.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	agent, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("assemble agent")
	}
	defer func() {
		if err := agent.Close(); err != nil {
			log.Error().Err(err).Msg("close agent")
		}
	}()

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	httpServer := httpserver.New(cfg, log, handlers.NewProvider(agent.Ask), authValidator, agent.Readiness())
	app := NewApplication(httpServer, log)

	log.Info().
		Str("tool_source", cfg.ToolSource).
		Str("model", cfg.LLMModel).
		Int("step_budget", cfg.StepBudget).
		Msg("sql agent ready")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
