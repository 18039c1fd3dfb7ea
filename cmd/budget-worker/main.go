package main

import (
	"context"
	"errors"
	"os"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
	gsheet "budget/internal/sheets/google"
	"budget/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	if err != nil {
		logger := cli.SetupLogger(config.Load(), log.ComponentWorker)
		logger.Error("Configuration validation failed",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Ignoring malformed .env file", log.FieldError, envErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting budget-worker", log.FieldOperation, log.OpStartup)

	// The worker only reads, so migrations are left to the server.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	backendCfg.SkipMigration = true
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	sheetsClient, err := gsheet.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	exportWorker := worker.NewExportWorker(store.Backend, sheetsClient, logger)

	// Catch up on anything replaced while the worker was down.
	if err := exportWorker.ExportNow(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	dial := func() (*amqp.Client, error) {
		return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	}

	consumeCtx, cancelConsume := context.WithCancel(ctx)
	defer cancelConsume()

	return cli.Run(ctx, logger, cfg.ShutdownTimeout,
		func(context.Context) error {
			err := amqp.ConsumeWithReconnect(consumeCtx, dial, exportWorker.HandleEntriesReplaced, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
		func(context.Context) error {
			cancelConsume()
			return nil
		},
	)
}
