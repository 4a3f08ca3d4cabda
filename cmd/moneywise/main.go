package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"moneywise/internal/cli"
	apphttp "moneywise/internal/http"
	"moneywise/internal/log"
	"moneywise/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	var publisher services.AlertPublisher
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	agg := services.NewAggregationService(repo)
	alerts := services.NewAlertService(repo, agg, publisher, logger)
	svc := apphttp.Services{
		Identity:    services.NewIdentityService(repo, logger),
		Sessions:    services.NewSessionService(repo, logger),
		Categories:  services.NewCategoryService(repo, logger),
		Ledger:      services.NewLedgerService(repo, alerts, logger),
		Aggregation: agg,
		Budgets:     services.NewBudgetService(repo, agg, logger),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, apphttp.Options{
		SecretKey:          cfg.SecretKey,
		SessionLifetime:    cfg.SessionLifetime,
		CookieSecure:       cfg.SessionCookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting MoneyWise server", "port", cfg.Port, "env", cfg.AppEnv, "amqp", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
