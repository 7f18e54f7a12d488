// Package cli provides common CLI initialization utilities.
// This package consolidates the start-up steps shared by cmd/pulse and
// cmd/pulse-cli.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pulse/internal/backend"
	"pulse/internal/cache"
	"pulse/internal/config"
	"pulse/internal/core"
	"pulse/internal/log"
	"pulse/internal/services"
)

// SetupLogger initializes structured logging from LOG_LEVEL and LOG_FORMAT.
// Unknown levels fall back to info. The logger becomes the slog default.
func SetupLogger() *log.Logger {
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}
	logger := log.New(log.Config{Level: level, Format: format, Output: os.Stderr})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Ignoring LOG_LEVEL", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads .env files for local development. Missing files are
// ignored; variables already set in the environment win.
func LoadEnvFile(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err, log.FieldOperation, log.OpValidate)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend creates the configured table source.
// Returns the backend or exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bcfg.Type.String())
		os.Exit(1)
	}
	return res
}

// NewDatasetService wires the dataset cache around reader. The returned
// manager sweeps expired tables when a TTL is configured; callers Stop it.
func NewDatasetService(logger *log.Logger, cfg *config.Config, res *backend.BackendResult) (*services.DatasetService, *cache.Manager) {
	tables := cache.NewLRUCache[core.Table](cfg.CacheSize, cfg.CacheTTL)
	mgr := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	mgr.Register(tables)
	if cfg.CacheTTL > 0 {
		mgr.StartCleanup(cleanupInterval(cfg.CacheTTL))
	}
	return services.NewDatasetService(res.Reader, tables, logger), mgr
}

// cleanupInterval sweeps at half the TTL, bounded to [10s, 5m].
func cleanupInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, 10*time.Second), 5*time.Minute)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
