package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"composehook/internal/compose"
	"composehook/internal/config"
	"composehook/internal/deploy"
	"composehook/internal/history"
	"composehook/internal/server"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that listens for deployment webhooks.

An authenticated POST to any path runs "docker compose pull" followed by
"docker compose up -d --remove-orphans" in the configured compose directory.
All settings come from environment variables.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Info("Starting composehook",
		"compose_dir", cfg.ComposeDir,
		"compose_file", cfg.ComposePath())

	if cfg.AuthDisabled() {
		logger.Warn("WEBHOOK_SECRET is not set, the webhook accepts unauthenticated requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Advisory only: report obvious compose file problems at startup
	// without refusing to serve.
	if summary, err := compose.Inspect(ctx, cfg.ComposeDir, cfg.ComposePath()); err != nil {
		logger.Warn("Compose file check failed", "error", err)
	} else {
		logger.Info("Compose file loaded",
			"project", summary.Project,
			"services", summary.Services)
	}

	var hist *history.History
	if cfg.HistoryDB != "" {
		logger.Info("Initializing history database", "db", cfg.HistoryDB)
		hist, err = history.New(cfg.HistoryDB)
		if err != nil {
			logger.Error("Failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer hist.Close()
	}

	trigger := deploy.NewTrigger(cfg, logger)
	srv := server.NewServer(cfg, trigger, hist, logger)

	logger.Info("Starting HTTP server", "addr", cfg.Addr())
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// setupLogging configures slog according to the logging settings.
// When a log path is configured, output goes to both stdout and the file;
// the caller must close the returned file handle.
func setupLogging(cfg *config.Config) (*slog.Logger, *os.File, error) {
	var out io.Writer = os.Stdout
	var file *os.File

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}

	var handler slog.Handler
	if cfg.LogFormat == "console" {
		handler = tint.NewHandler(out, &tint.Options{Level: cfg.SlogLevel()})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	}

	return slog.New(handler), file, nil
}
