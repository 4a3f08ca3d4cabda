package main

import (
	"context"
	"os"
	"time"

	"moneywise/internal/cli"
	"moneywise/internal/log"
	"moneywise/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Generated occurrences go through the ledger, so budgets on their
	// categories can raise alerts like manual adds.
	amqpClient := cli.InitAMQP(logger, cfg)
	var publisher services.AlertPublisher
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	agg := services.NewAggregationService(repo)
	ledger := services.NewLedgerService(repo, services.NewAlertService(repo, agg, publisher, logger), logger)
	processor := services.NewRecurringProcessor(repo, ledger, logger)
	sessions := services.NewSessionService(repo, logger)

	schedulerCfg := services.DefaultSchedulerConfig()
	schedulerCfg.RecurringInterval = cfg.RecurringInterval
	schedulerCfg.RecurringSchedule = cfg.RecurringSchedule
	scheduler := services.NewScheduler(processor, sessions, schedulerCfg, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Scheduler stop failed", log.FieldError, err)
		}
	})

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"schedule", cfg.RecurringSchedule,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
