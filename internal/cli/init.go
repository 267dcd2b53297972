// Package cli provides common CLI initialization utilities shared by
// cmd/plndash and cmd/plndash-export.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"plndash/internal/config"
	applog "plndash/internal/log"
	"plndash/internal/source"
	"plndash/internal/source/file"
	"plndash/internal/source/google"
	"plndash/internal/source/remote"
	"plndash/internal/source/sqlite"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL value.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	if lvl, err := applog.ParseLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldError, err.Error(),
			"error_type", applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// OpenSource builds the TableReader selected by DATA_SOURCE. The returned
// close function releases any handle the reader holds.
func OpenSource(ctx context.Context, cfg *config.Config) (source.TableReader, func() error, error) {
	noop := func() error { return nil }
	switch cfg.DataSource {
	case config.SourceCSV:
		r, err := remote.New(cfg.DataURL, nil)
		if err != nil {
			return nil, noop, err
		}
		return r, noop, nil
	case config.SourceFile:
		r, err := file.New(cfg.DataFile, cfg.DataSheet)
		if err != nil {
			return nil, noop, err
		}
		return r, noop, nil
	case config.SourceSheets:
		r, err := google.New(ctx, google.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			Range:         cfg.GoogleSheetRange,
		})
		if err != nil {
			return nil, noop, err
		}
		return r, noop, nil
	case config.SourceSQLite:
		r, err := sqlite.Open(cfg.SQLiteDBPath, cfg.SQLiteTable)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown data source %q", cfg.DataSource)
}

// MustOpenSource is OpenSource that exits the process on failure.
func MustOpenSource(ctx context.Context, logger *applog.Logger, cfg *config.Config) (source.TableReader, func() error) {
	src, closeFn, err := OpenSource(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize data source",
			applog.FieldError, err.Error(),
			applog.FieldSource, cfg.DataSource)
		os.Exit(1)
	}
	logger.Info("Initialized data source", applog.FieldSource, src.Describe())
	return src, closeFn
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete. cleanup receives
// a context bounded by timeout.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

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
