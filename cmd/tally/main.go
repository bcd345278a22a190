package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/cache"
	"tally/internal/config"
	"tally/internal/export/sheets"
	tallyhttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting tally")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	st, err := backend.Open(cfg, slog.Default())
	if err != nil {
		logger.Error("Failed to open storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer st.Close()

	// AMQP is optional. Without it alert events stay local to the API.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, alerts will not be published", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - alert events will not be published")
	}

	var publisher services.AlertPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	transactions := services.NewTransactionService(st)
	recurring := services.NewRecurringService(st, publisher, services.CatchUpPolicy(cfg.CatchUpPolicy))
	alerts := services.NewAlertService(st, publisher)
	budgets := services.NewBudgetService(st, alerts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authenticator, err := tallyhttp.NewAuthenticator(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize authenticator", "error", err)
		os.Exit(1)
	}

	cacheManager := cache.NewManager()
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	srv := tallyhttp.NewServer(cfg, st, transactions, recurring, budgets, authenticator, logger, cacheManager)

	recurringWorker := worker.NewRecurringWorker(st, recurring, worker.RecurringWorkerConfig{
		CheckInterval: cfg.RecurringCheckInterval,
	})
	if err := recurringWorker.Start(ctx); err != nil {
		logger.Error("Failed to start recurring worker", "error", err)
		os.Exit(1)
	}

	// Export runs in-process only when a spreadsheet is configured.
	var exportWorker *worker.ExportWorker
	if cfg.GoogleSpreadsheetID != "" {
		writer, err := sheets.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets writer", "error", err)
			os.Exit(1)
		}
		exportWorker = worker.NewExportWorker(st, writer, worker.ExportWorkerConfig{
			PollInterval: cfg.ExportInterval,
			BatchSize:    cfg.ExportBatchSize,
		})
		if err := exportWorker.Start(ctx); err != nil {
			logger.Error("Failed to start export worker", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := recurringWorker.Stop(shutdownCtx); err != nil {
			logger.Error("Recurring worker shutdown failed", "error", err)
		}
		if exportWorker != nil {
			if err := exportWorker.Stop(shutdownCtx); err != nil {
				logger.Error("Export worker shutdown failed", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
		cancel()
	}()

	logger.Info("Server listening", "port", cfg.Port)
	if err := srv.Start(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown complete")
}
