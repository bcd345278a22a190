package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/log"
)

// alert-worker consumes alert events from the queue and delivers them.
// Delivery is a structured log line per event; downstream channels
// (mail, push) hang off the same handler.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentAlert})
	log.SetDefault(logger)

	logger.Info("Starting alert-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("Shutdown signal received")
		cancel()
	}()

	handler := func(msg *amqp.AlertEventMessage) error {
		switch msg.Kind {
		case "recurring.generated":
			logger.Info("Recurring transaction generated",
				log.FieldUserID, msg.UserID,
				log.FieldRecurringID, msg.RecurringID,
				log.FieldRecurringName, msg.Name,
				log.FieldCategory, msg.Category,
				log.FieldAmountCents, msg.AmountCents)
		default:
			logger.Info("Budget alert",
				log.FieldAlertKind, msg.Kind,
				log.FieldUserID, msg.UserID,
				log.FieldCategory, msg.Category,
				"from", msg.From,
				"to", msg.To,
				"percent", msg.Percent)
		}
		return nil
	}

	logger.Info("Consuming alert events", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeAlerts(ctx, handler); err != nil && err != context.Canceled {
		logger.Error("Alert consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
