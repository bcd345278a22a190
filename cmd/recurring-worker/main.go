package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/store/sqlite"
	"tally/internal/worker"
)

// recurring-worker runs the due-date check loop without the HTTP API.
// Run it alongside tally when the API should not own scheduled firing,
// for example with several API replicas behind a load balancer.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	st, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer st.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, events will not be published", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	var publisher services.AlertPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	recurring := services.NewRecurringService(st, publisher, services.CatchUpPolicy(cfg.CatchUpPolicy))

	w := worker.NewRecurringWorker(st, recurring, worker.RecurringWorkerConfig{
		CheckInterval: cfg.RecurringCheckInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start recurring worker", "error", err)
		os.Exit(1)
	}

	logger.Info("Recurring worker running",
		"interval", cfg.RecurringCheckInterval,
		"catch_up_policy", cfg.CatchUpPolicy,
		"sqlite_db", cfg.SQLiteDBPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := w.Stop(shutdownCtx); err != nil {
		logger.Error("Recurring worker shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}
