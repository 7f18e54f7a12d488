package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"pulse/internal/amqp"
	"pulse/internal/charts"
	"pulse/internal/cli"
	apphttp "pulse/internal/http"
	"pulse/internal/log"
	"pulse/internal/services"
	"pulse/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	source := cli.OpenBackend(startCtx, logger, cfg)
	defer func() {
		if err := source.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	}()

	datasets, cacheManager := cli.NewDatasetService(logger, cfg, source)
	defer cacheManager.Stop()

	if cfg.WarmOnStartup {
		datasets.WarmAll(startCtx)
	}
	startCancel()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		PreviewRowLimit:    cfg.PreviewRowLimit,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, apphttp.Deps{
		Datasets: datasets,
		Views:    services.NewViewService(datasets, nil, logger),
		Explorer: services.NewExplorerService(datasets),
		Charts:   charts.NewRenderer(cfg.ChartWidth, cfg.ChartHeight),
		Logger:   logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	refresher := worker.NewRefreshWorker(datasets, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		refresher.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	if err := refresher.StartCron(ctx, cfg.RefreshCron); err != nil {
		logger.Error("Failed to schedule dataset refresh", log.FieldError, err)
		os.Exit(1)
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		go func() {
			if err := refresher.Run(ctx, client); err != nil {
				logger.Error("Refresh consumer stopped", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.Error("Failed to listen", log.FieldError, err, "addr", srv.Addr)
		os.Exit(1)
	}
	logger.Info("Starting pulse server",
		log.FieldOperation, log.OpStartup,
		"addr", ln.Addr().String(),
		"backend", cfg.DataBackend,
		"cache_size", cfg.CacheSize,
		"cache_ttl", cfg.CacheTTL.String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
