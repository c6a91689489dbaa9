// Package cmd provides the CLI commands for ironclad.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/ironclad-authz/ironclad/internal/adapter/inbound/http"
	"github.com/ironclad-authz/ironclad/internal/config"
	"github.com/ironclad-authz/ironclad/internal/domain/auth"
	"github.com/ironclad-authz/ironclad/internal/storage"
	_ "github.com/ironclad-authz/ironclad/internal/storage/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "ironclad",
	Short: "ironclad - ABAC authorization decision service",
	Long: `ironclad evaluates ALLOW/DENY policies attached to identities and
groups and answers "is this subject allowed to perform this action on this
resource" over a small HTTP API.

Configuration is read entirely from the environment:

  DSN             storage backend connection string (required)
  SERVE_PORT      HTTP listen port (default 8091)
  LOG_LEVEL       debug|info|warn|error (default debug)
  ADMIN_API_KEY   operator key required on mutating endpoints (optional)

Commands:
  serve       Start the decision service
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { config.InitViper() })
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the decision service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, closer, err := storage.OpenWithRetry(ctx, cfg.DSN, func(attempt int, err error) {
		logger.Warn("storage connection attempt failed, retrying", "attempt", attempt, "error", err, "backoff", 5*time.Second)
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("error closing storage backend", "error", cerr)
		}
	}()

	authenticator, err := auth.NewAuthenticator(cfg.AdminAPIKey)
	if err != nil {
		return fmt.Errorf("construct authenticator: %w", err)
	}

	transport := httpadapter.NewHTTPTransport(manager, authenticator,
		httpadapter.WithAddr(fmt.Sprintf(":%d", cfg.ServePort)),
		httpadapter.WithLogger(logger),
	)

	return transport.Start(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
