package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"studydash/internal/amqp"
	"studydash/internal/backend"
	"studydash/internal/cli"
	applog "studydash/internal/log"
	"studydash/internal/services"
	"studydash/internal/sheets"
	gsheet "studydash/internal/sheets/google"
	sheetmem "studydash/internal/sheets/memory"
	"studydash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	decimal.MarshalJSONWithoutQuotes = true

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger.Info("Starting studydash-worker", applog.FieldBackend, cfg.DataBackend)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err == nil {
		err = backendConfig.ValidateForWorker()
	}
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
	closers := []func() error{}
	if result.Cleanup != nil {
		closers = append(closers, result.Cleanup)
	}

	// Snapshots always live in SQLite, even when the data comes from elsewhere
	snapshots := data.Snapshots
	if snapshots == nil {
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		closers = append(closers, repo.Close)
		snapshots = repo
	}

	loc, _ := cfg.Location()
	dashOpts := []services.DashboardOption{
		services.WithLocation(loc),
		services.WithOptions(cfg.DashboardOptions()),
	}
	if data.Periods != nil {
		dashOpts = append(dashOpts, services.WithPeriodReader(data.Periods))
	}
	dashboards := services.NewDashboardService(data.Payments, data.Students, dashOpts...)

	refresher := worker.NewRefreshWorker(dashboards, snapshots, reportWriter(logger, cfg.GoogleSpreadsheetID, cfg.GoogleReportSheetName, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	}))

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		closers = append(closers, amqpClient.Close)
	} else {
		logger.Info("AMQP disabled, refreshing on the interval only")
	}

	var wg sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		wg.Wait()
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Error("Cleanup failed", applog.FieldError, err)
			}
		}
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(ctx, cfg.RefreshInterval)
	}()

	if amqpClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := amqpClient.ConsumeLedgerChanges(ctx, refresher.HandleLedgerChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger change consumption stopped", applog.FieldError, err)
			}
		}()
	}

	logger.Info("Worker running",
		"refresh_interval", cfg.RefreshInterval.String(),
		"amqp_enabled", amqpClient != nil,
		"sheets_enabled", cfg.GoogleSpreadsheetID != "")

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// reportWriter returns the spreadsheet exporter, or an in-process store when
// no spreadsheet is configured. A broken configuration is fatal.
func reportWriter(logger *applog.Logger, spreadsheetID, sheetName string, creds gsheet.Credentials) sheets.ReportWriter {
	if spreadsheetID == "" {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided, keeping report in memory")
		return sheetmem.New()
	}
	client, err := gsheet.NewWithServiceAccount(context.Background(), spreadsheetID, sheetName, creds)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets export enabled", "spreadsheet_id", spreadsheetID, "sheet", sheetName)
	return client
}
