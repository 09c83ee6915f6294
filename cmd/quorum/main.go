// Quorum orchestrator server — provides the HTTP API, runs the
// multi-agent reasoning pipeline, and streams task events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/quorum/pkg/analytics"
	"github.com/codeready-toolchain/quorum/pkg/api"
	"github.com/codeready-toolchain/quorum/pkg/audit"
	"github.com/codeready-toolchain/quorum/pkg/backend"
	"github.com/codeready-toolchain/quorum/pkg/config"
	"github.com/codeready-toolchain/quorum/pkg/database"
	"github.com/codeready-toolchain/quorum/pkg/events"
	"github.com/codeready-toolchain/quorum/pkg/memory"
	"github.com/codeready-toolchain/quorum/pkg/reasoning"
	"github.com/codeready-toolchain/quorum/pkg/slack"
	"github.com/codeready-toolchain/quorum/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_FILE", ""),
		"Path to optional YAML configuration file")
	flag.Parse()

	// Load .env before anything reads the environment.
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting quorum",
		"version", version.Full(),
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"backends", len(cfg.Backends))

	// 2. Initialize database (optional — the pipeline runs without
	// persistence, with auditing, memory, and analytics disabled)
	var dbClient *database.Client
	if dbConfig, dbErr := database.LoadConfigFromEnv(); dbErr != nil {
		slog.Warn("Database not configured, running without persistence", "error", dbErr)
	} else {
		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbClient.Close()
		slog.Info("Connected to PostgreSQL database")
	}

	// 3. Backend registry with audit trail
	var auditSink backend.AuditSink = backend.NopAuditSink{}
	if dbClient != nil {
		auditSink = audit.NewStore(dbClient.Pool())
	}

	settings, err := cfg.BackendSettings()
	if err != nil {
		slog.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	registry, err := backend.NewRegistry(settings, auditSink)
	if err != nil {
		slog.Error("Failed to build backend registry", "error", err)
		os.Exit(1)
	}

	// 4. Memory store (redis cache + postgres long-term recall)
	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := cache.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unavailable, memory cache disabled", "addr", cfg.Redis.Addr, "error", err)
			cache = nil
		}
	}

	var embedder memory.Embedder
	if gpt, ok := cfg.Backends["gpt"]; ok && gpt.APIKey != "" {
		embedder = memory.NewOpenAIEmbedder(gpt.APIKey, "")
	}

	var memoryStore reasoning.MemoryStore
	if dbClient != nil {
		memoryStore = memory.NewStore(cache, dbClient.Pool(), embedder)
	} else if cache != nil {
		memoryStore = memory.NewStore(cache, nil, embedder)
	}

	// 5. Event hub for WebSocket streaming
	hub := events.NewHub()

	// 6. Slack alerting (nil service when not configured)
	var alerter reasoning.Alerter
	if cfg.Slack.Enabled {
		if svc := slack.NewService(slack.ServiceConfig{Token: cfg.Slack.Token, Channel: cfg.Slack.Channel}); svc != nil {
			alerter = svc
			slog.Info("Slack alerting enabled", "channel", cfg.Slack.Channel)
		}
	}

	// 7. Orchestrator
	orchestrator := reasoning.New(registry, memoryStore, hub, alerter, reasoning.Options{
		ConfidenceThreshold:          cfg.Reasoning.ConfidenceThreshold,
		MaxConcurrentTasks:           cfg.Reasoning.MaxConcurrentTasks,
		DefaultTaskTimeout:           cfg.Reasoning.DefaultTaskTimeout(),
		EnableContradictionDetection: cfg.Reasoning.ContradictionDetectionEnabled(),
		EnableHallucinationDetection: cfg.Reasoning.HallucinationDetectionEnabled(),
		EnableResponseVerification:   cfg.Reasoning.ResponseVerificationEnabled(),
	})

	var analyticsSvc *analytics.Service
	if dbClient != nil {
		analyticsSvc = analytics.NewService(dbClient.Pool())
	}

	// 8. HTTP server (non-blocking)
	httpServer := api.NewServer(cfg, orchestrator, analyticsSvc, dbClient, hub)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("quorum started successfully")

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			slog.Error("Error closing redis client", "error", err)
		}
	}

	slog.Info("quorum stopped")
}
