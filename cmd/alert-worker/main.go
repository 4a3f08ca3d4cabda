package main

import (
	"context"
	"errors"
	"os"
	"time"

	"moneywise/internal/amqp"
	"moneywise/internal/cli"
	"moneywise/internal/log"
	"moneywise/internal/mail"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentMail, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting alert-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	notifier := mail.NewNotifier(mail.Config{
		Server:   cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailDefaultSender,
	}, logger)
	if !cfg.MailEnabled() {
		logger.Warn("MAIL_SERVER not set, budget alerts will only be logged")
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	go func() {
		err := client.ConsumeBudgetAlerts(ctx, notifier.HandleBudgetAlert)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Alert-worker shutdown complete")
}
