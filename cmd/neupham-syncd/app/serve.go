package app

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/yadaklinus/neuPham-sub000/internal/api"
	"github.com/yadaklinus/neuPham-sub000/internal/config"
	"github.com/yadaklinus/neuPham-sub000/internal/status"
	"github.com/yadaklinus/neuPham-sub000/internal/store/postgres"
	"github.com/yadaklinus/neuPham-sub000/internal/store/sqlite"
	"github.com/yadaklinus/neuPham-sub000/internal/sync"
	"github.com/yadaklinus/neuPham-sub000/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync daemon",
	Long: `Start the sync daemon. It opens the offline SQLite store, connects to the
online PostgreSQL store, and serves the sync trigger and status endpoints.

The daemon requires a configuration file (--config) that specifies the
local store path and the remote store connection settings.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	// A trigger blocks for the whole run, so the write timeout has to
	// accommodate a full sync over a slow link.
	serverWriteTimeout = 10 * time.Minute
	serverIdleTimeout  = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8585", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"instance", cfg.GetInstanceName(),
		"local_store", cfg.Local.Path)

	// Open the offline store. The sync engine shares the database file
	// with the application, so missing tables are created rather than
	// treated as an error.
	localDB, err := sqlite.Open(cfg.Local.Path)
	if err != nil {
		return fmt.Errorf("failed to open offline store: %w", err)
	}
	defer func() {
		if closeErr := localDB.Close(); closeErr != nil {
			slog.Error("Error closing offline store", "error", closeErr)
		}
	}()
	if err := sqlite.EnsureSchema(ctx, localDB); err != nil {
		return err
	}
	source := sqlite.New(localDB, sqlite.DefaultSpecs())

	// The remote pool connects lazily: an unreachable online store must
	// not prevent the daemon from starting, that is what run modes are
	// for.
	connString, err := cfg.Remote.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to build remote store connection string: %w", err)
	}
	pool, err := postgres.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to configure online store: %w", err)
	}
	defer pool.Close()
	target := postgres.New(pool, postgres.DefaultSpecs())

	metrics, err := telemetry.NewSyncMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	tracker := status.NewTracker()
	prober := sync.NewProber(source, target)
	orchestrator := sync.NewOrchestrator(source, target, tracker,
		sync.WithProber(prober),
		sync.WithProbeTries(cfg.ProbeMaxTries()),
		sync.WithSyncMetrics(metrics),
	)

	router := api.NewServer(orchestrator, tracker, prober,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
