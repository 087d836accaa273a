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

	"github.com/JonMunkholm/sheetmerge/internal/config"
	"github.com/JonMunkholm/sheetmerge/internal/history"
	"github.com/JonMunkholm/sheetmerge/internal/logging"
	"github.com/JonMunkholm/sheetmerge/internal/service"
	"github.com/JonMunkholm/sheetmerge/internal/web"
)

func main() {
	// Overload lets .env win over the inherited environment
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	dataRoot, err := cfg.Server.DataRoot()
	if err != nil {
		logger.Error("refusing to start without a data directory", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"data_dir", dataRoot,
		"merge_max_concurrent", cfg.Limits.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"api_key_required", cfg.Security.RequireAPIKey,
	)

	defaults, err := cfg.MergeOptions()
	if err != nil {
		logger.Error("failed to resolve merge options", "error", err, "profile", cfg.Merge.Profile)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := openHistory(ctx, cfg.History)
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		os.Exit(1)
	}

	svc := service.New(service.Config{
		Defaults:      defaults,
		MaxConcurrent: cfg.Limits.MaxConcurrent,
		MaxWait:       cfg.Limits.MaxWait,
		Timeout:       cfg.Limits.Timeout,
		PreviewRows:   cfg.Merge.PreviewRows,
	}, store, logger)
	defer svc.Close()

	server := web.NewServer(cfg, svc)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := svc.LimiterStatus(); status.Active > 0 {
			logger.Info("waiting for merges to complete", "active", status.Active)
			if err := svc.WaitForMerges(shutdownCtx); err != nil {
				logger.Warn("merges did not complete in time", "error", err)
			} else {
				logger.Info("all merges completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		logger.Info("server stopped", "error", err)
	}
}

// openHistory opens the configured store, applying the pool settings when
// it is PostgreSQL.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
	if !strings.HasPrefix(cfg.DSN, "postgres://") && !strings.HasPrefix(cfg.DSN, "postgresql://") {
		store, err := history.Open(ctx, cfg.DSN)
		if err == nil {
			slog.Info("history store opened", "dsn", displayDSN(cfg.DSN))
		}
		return store, err
	}

	store, err := history.OpenPostgres(ctx, cfg.DSN, history.PoolOptions{
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		MaxConnIdleTime: cfg.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.DSN); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return store, nil
}

func displayDSN(dsn string) string {
	if dsn == "" {
		return "memory"
	}
	return dsn
}
