package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"plndash/internal/cli"
	"plndash/internal/dashboard"
	apphttp "plndash/internal/http"
	"plndash/internal/loader"
	applog "plndash/internal/log"
	"plndash/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	layout, err := dashboard.LoadLayout(cfg.DashboardLayoutFile)
	if err != nil {
		logger.Error("Failed to load dashboard layout",
			applog.FieldError, err.Error(),
			"error_type", applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	src, closeSource := cli.MustOpenSource(context.Background(), logger, cfg)
	ld := loader.New(src,
		loader.WithTimeout(cfg.FetchTimeout),
		loader.WithLogger(logger))

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Loader:         ld,
		Layout:         layout,
		Schema:         cfg.Schema(),
		DefaultMode:    cfg.Mode(),
		SinglePoint:    cfg.SinglePoint(),
		ChartCacheSize: cfg.ChartCacheSize,
		ChartCacheTTL:  cfg.ChartCacheTTL,
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		if err := closeSource(); err != nil {
			logger.Warn("Failed to close data source", applog.FieldError, err.Error())
		}
	})

	// Warm the dataset so the first visitor does not pay for the fetch. A
	// failure here is not fatal: the next request retries.
	go func() {
		if _, err := ld.Load(ctx); err == nil {
			logger.Info("Dataset warmed", applog.FieldOperation, applog.OpStartup)
		}
	}()

	logger.Info("Starting plndash server",
		"port", cfg.Port,
		applog.FieldSource, ld.Source(),
		applog.FieldMode, string(cfg.Mode()),
		"schema", string(cfg.Schema()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
