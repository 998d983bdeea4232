package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/janhq/sql-agent/internal/bootstrap"
	"github.com/janhq/sql-agent/internal/config"
	"github.com/janhq/sql-agent/internal/infrastructure/logger"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/sql-agent/internal/interfaces/mcpserver"
)

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg)
	log.Info().
		Str("addr", cfg.MCPAddr()).
		Str("log_level", cfg.LogLevel).
		Msg("Starting SQL MCP tool server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toolkit, pool, err := bootstrap.NewLocalToolkit(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize sql tools")
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	registry, err := bootstrap.NewRegistry(ctx, cfg, toolkit.Source(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("load tools")
	}
	mcpRoute := mcpserver.NewRoute(registry, bootstrap.Version, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger(log))
	router.Use(middlewares.CORS(cfg.CORSAllowedOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sql-mcp-tools"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "sql-mcp-tools"})
	})

	mcpRoute.RegisterRouter(router)

	server := &http.Server{
		Addr:              cfg.MCPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.MCPAddr()).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down MCP tool server")
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown MCP tool server")
	}
}

func loadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
