package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"studydash/internal/amqp"
	"studydash/internal/backend"
	"studydash/internal/cache"
	"studydash/internal/cli"
	apphttp "studydash/internal/http"
	applog "studydash/internal/log"
	"studydash/internal/services"
)

func main() {
	cli.LoadEnvFile()
	decimal.MarshalJSONWithoutQuotes = true

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	data := result.Backend

	loc, _ := cfg.Location()
	snapshots := cache.NewLRUCache[services.Snapshot](1, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(time.Minute)

	dashOpts := []services.DashboardOption{
		services.WithCache(snapshots),
		services.WithLocation(loc),
		services.WithOptions(cfg.DashboardOptions()),
	}
	if data.Periods != nil {
		dashOpts = append(dashOpts, services.WithPeriodReader(data.Periods))
	}
	dashboards := services.NewDashboardService(data.Payments, data.Students, dashOpts...)

	// Ledger notifications are optional; imports still work without them.
	// A memory backend's imports never reach the worker, so nothing is sent.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	switch {
	case cfg.AMQPURL == "" || !data.Writable():
	case !backendConfig.Type.Shared():
		logger.Warn("AMQP ignored, the worker cannot see imports into this backend", applog.FieldBackend, cfg.DataBackend)
	default:
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger changes will not be announced", applog.FieldError, err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var importer apphttp.Importer
	if data.Writable() {
		importer = services.NewImportService(data.PaymentWriter, data.StudentWriter, publisher, dashboards)
	}

	serverOpts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithReadyCheck(func(ctx context.Context) error {
			_, err := dashboards.Fetch(ctx)
			return err
		}),
	}
	if data.Snapshots != nil {
		serverOpts = append(serverOpts, apphttp.WithSnapshots(data.Snapshots))
	}
	srv := apphttp.NewServer(":"+cfg.Port, dashboards, importer, serverOpts...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Failed to close backend", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting studydash server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"writable", data.Writable(),
		"amqp_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
