package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/omarelbidi/bankcore/internal/config"
	"github.com/omarelbidi/bankcore/internal/core"
	"github.com/omarelbidi/bankcore/internal/logging"
	"github.com/omarelbidi/bankcore/internal/store"
	"github.com/omarelbidi/bankcore/internal/web"
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
		"pool_size", cfg.Pool.Size,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Open the fixed-size connection pool
	pool, err := store.NewPool(ctx, cfg.Pool.Size, store.PostgresDialer(cfg.Database.URL))
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if cfg.Pool.WaitForConn {
		pool.SetAcquireWait(cfg.Pool.AcquireTimeout)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName, "pool_size", pool.Size())
	} else {
		slog.Info("connected to database", "pool_size", pool.Size())
	}

	// Optionally create the schema on startup
	if cfg.Database.InitSchema {
		if err := store.InitSchema(ctx, pool); err != nil {
			slog.Error("failed to initialize schema", "error", err)
			os.Exit(1)
		}
		slog.Info("schema initialized")
	}

	// Build the facade; this warms the entity caches from the store
	bank, err := core.NewBank(ctx, pool, core.UUIDSupplier{})
	if err != nil {
		slog.Error("failed to create bank", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(bank, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := bank.Shutdown(shutdownCtx); err != nil {
			slog.Error("pool close error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
