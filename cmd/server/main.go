package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/weMaron/excel-processor/internal/config"
	"github.com/weMaron/excel-processor/internal/inference"
	"github.com/weMaron/excel-processor/internal/logging"
	"github.com/weMaron/excel-processor/internal/profile"
	"github.com/weMaron/excel-processor/internal/web"
	"github.com/weMaron/excel-processor/internal/workspace"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"batch_size", cfg.Inference.BatchSize,
		"cooldown", cfg.Inference.Cooldown,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// The profile store is optional: without a database URL the service
	// runs with profiles disabled.
	var profiles *profile.Store
	if cfg.Database.URL != "" {
		pool, err := connectPool(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		profiles = profile.NewStore(pool)
		if err := profiles.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare profile schema", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("DATABASE_URL not set, profiles disabled")
	}

	// The review engine is optional too: without an API key the process
	// endpoints answer 503.
	var engine inference.Engine
	if cfg.Inference.APIKey != "" {
		client, err := inference.NewGeminiClient(cfg.Inference.APIKey,
			inference.WithModel(cfg.Inference.Model),
			inference.WithBaseURL(cfg.Inference.BaseURL),
			inference.WithHTTPClient(&http.Client{Timeout: cfg.Inference.RequestTimeout}),
			inference.WithMaxAttachmentSize(cfg.Inference.MaxAttachmentSize),
		)
		if err != nil {
			slog.Error("failed to create review engine", "error", err)
			os.Exit(1)
		}
		engine = client
		slog.Info("review engine ready", "model", cfg.Inference.Model)
	} else {
		slog.Warn("GEMINI_API_KEY not set, review runs disabled")
	}

	ws := workspace.New(workspace.Options{
		BatchSize: cfg.Inference.BatchSize,
		Cooldown:  cfg.Inference.Cooldown,
	})

	server := web.NewServer(cfg, ws, profiles, engine)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let an active review run reach its next batch boundary
		ws.CancelRun()
		if err := ws.Drain(shutdownCtx); err != nil {
			slog.Warn("review run did not finish in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connectPool builds the pgx pool from config and verifies the connection.
func connectPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
