// AgentEval evaluation engine server: provides the HTTP API, runs
// evaluation coordinators, and grades agent behavior with an LLM judge.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentevalhq/agenteval/pkg/api"
	"github.com/agentevalhq/agenteval/pkg/config"
	"github.com/agentevalhq/agenteval/pkg/dispatch"
	"github.com/agentevalhq/agenteval/pkg/judge"
	"github.com/agentevalhq/agenteval/pkg/llm"
	"github.com/agentevalhq/agenteval/pkg/proposals"
	"github.com/agentevalhq/agenteval/pkg/runner"
	"github.com/agentevalhq/agenteval/pkg/store"
)

func main() {
	// Load .env if present; a containerized deployment sets the environment
	// directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.VerboseLogging {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting AgentEval",
		"http_port", cfg.HTTPPort,
		"judge_model", cfg.JudgeModel)

	ctx := context.Background()

	// 1. Database and migrations
	dbConfig, err := store.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	st, err := store.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Error closing store", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 2. Startup reconcilers: defaults, then orphaned-run sweep
	if err := st.Reconcile(ctx, cfg.DefaultAgentEndpoint); err != nil {
		slog.Error("Startup reconcile failed", "error", err)
		os.Exit(1)
	}

	// 3. Engine components
	judgeLLM := llm.NewClient(cfg.JudgeBaseURL, cfg.JudgeAPIKey, cfg.JudgeModel)
	judgeSvc := judge.New(judgeLLM, cfg.Retry, st)
	dispatcher := dispatch.New(cfg.AgentAPIKey, cfg.Retry, cfg.RunTimeout, st)
	evaluator := runner.NewEvaluator(dispatcher, judgeSvc)
	registry := runner.NewRegistry()
	coordinator := runner.NewCoordinator(st, evaluator, registry, cfg.RunTimeout)
	generator := proposals.NewGenerator(st, judgeSvc)

	// 4. HTTP server
	server := api.NewServer(st, coordinator, generator, cfg.CORSOrigins)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 5. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 6. Graceful shutdown: abort in-flight runs, then drain HTTP. Aborted
	// runs are swept to cancelled by the next startup's reconciler if their
	// final persist loses the race.
	registry.AbortAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
