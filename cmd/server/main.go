package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utafrali/farmmarket/internal/app"
	"github.com/utafrali/farmmarket/internal/config"
	handler "github.com/utafrali/farmmarket/internal/handler/http"
	"github.com/utafrali/farmmarket/pkg/logger"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "farmmarket",
	Short: "Farm-to-buyer marketplace API",
	Long: `farmmarket serves the marketplace HTTP API: carts, checkout with
order message handoff, threaded product reviews and order tracking.

Configuration is read from environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log = logger.New(handler.ServiceName, cfg.LogLevel)
		return nil
	},
}

// serveCmd runs the HTTP API until SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("starting farmmarket",
			slog.String("environment", cfg.Environment),
			slog.String("version", cfg.Version),
			slog.Int("http_port", cfg.HTTPPort),
			slog.String("storage_mode", cfg.StorageMode),
		)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		application, err := app.NewApp(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		// Blocks until shutdown.
		if err := application.Run(ctx); err != nil {
			return err
		}

		log.Info("farmmarket stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := app.Migrate(ctx, cfg, log); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo farmers and products",
	Long:  "Applies migrations, then inserts a small demo catalog. Rows that already exist are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Seed(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if log != nil {
			log.Error("farmmarket exited with error", slog.String("error", err.Error()))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
