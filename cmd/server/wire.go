//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/sql-agent/internal/bootstrap"
	"github.com/janhq/sql-agent/internal/config"
	"github.com/janhq/sql-agent/internal/domain/ask"
	"github.com/janhq/sql-agent/internal/infrastructure/auth"
	"github.com/janhq/sql-agent/internal/infrastructure/logger"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver/handlers"
)

var agentSet = wire.NewSet(
	bootstrap.Build,
	newAskService,
	wire.Bind(new(handlers.AskService), new(*ask.Service)),
	handlers.NewProvider,
	newReadinessChecks,
)

// BuildApplication assembles the SQL agent service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newAuthValidator,
		agentSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newAskService(agent *bootstrap.Agent) *ask.Service {
	return agent.Ask
}

func newReadinessChecks(agent *bootstrap.Agent) httpserver.ReadinessChecks {
	return agent.Readiness()
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}
