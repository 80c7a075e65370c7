package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huddlehq/huddle/internal/api/handlers"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/database"
	"github.com/huddlehq/huddle/internal/server"
	"github.com/huddlehq/huddle/internal/telemetry"
	"github.com/spf13/cobra"
)

const (
	defaultMigrationsDir = "migrations"
	shutdownTimeout      = 30 * time.Second
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the huddle API server and the background index worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides HUDDLE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background index worker")
	cmd.Flags().String("migrations", defaultMigrationsDir, "Directory holding the SQL migrations")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	shutdownTelemetry := initTelemetry(cfg, logger)
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	// Migrations run once NewApp has reached the database.
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		dir, _ := cmd.Flags().GetString("migrations")
		if err := runMigrations(cfg.DatabaseURL, dir, logger); err != nil {
			return err
		}
	}

	noWorker, _ := cmd.Flags().GetBool("no-worker")
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if !noWorker {
		worker := app.NewIndexWorker()
		go worker.Start(workerCtx)
		defer worker.Stop()
		logger.Info("index worker started", "poll_interval", cfg.IndexJobPollInterval.String())
	}

	router := server.NewRouter(server.RouterConfig{
		SourceHandler:   handlers.NewSourceHandler(app.Workspace),
		AnalysisHandler: handlers.NewAnalysisHandler(app.Workspace),
		ChatHandler:     handlers.NewChatHandler(app.Workspace),
		HealthHandler:   handlers.NewHealthHandler(app.Pool),
		RequestTimeout:  cfg.RequestTimeout,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func initTelemetry(cfg *config.Config, logger *slog.Logger) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		return func() {}
	}
	return shutdown
}

func runMigrations(databaseURL, dir string, logger *slog.Logger) error {
	result, err := database.Migrate(databaseURL, dir)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if result.Changed {
		logger.Info("migrations applied", "version", result.Version)
	} else {
		logger.Info("database is up to date", "version", result.Version)
	}
	return nil
}
