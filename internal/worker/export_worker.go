package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tally/internal/export"
	"tally/internal/store"
)

// ExportWorkerConfig tunes the export queue drain
type ExportWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultExportWorkerConfig returns the default tuning
func DefaultExportWorkerConfig() ExportWorkerConfig {
	return ExportWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// ExportWorker drains the export queue into the spreadsheet backup.
type ExportWorker struct {
	queue  store.ExportQueue
	writer export.TransactionWriter
	config ExportWorkerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportWorker creates the worker
func NewExportWorker(queue store.ExportQueue, writer export.TransactionWriter, config ExportWorkerConfig) *ExportWorker {
	if config.PollInterval <= 0 || config.BatchSize <= 0 {
		config = DefaultExportWorkerConfig()
	}
	return &ExportWorker{
		queue:  queue,
		writer: writer,
		config: config,
	}
}

// Start begins the drain loop. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("export worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Export worker started",
		"poll_interval", w.config.PollInterval,
		"batch_size", w.config.BatchSize)

	return nil
}

// Stop gracefully stops the worker and waits for completion.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Export worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the worker is currently running
func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ExportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.ProcessBatch(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessBatch exports one batch of pending transactions. The batch is
// appended in a single call; marking happens per transaction so a crash
// between append and mark re-exports at most one batch.
func (w *ExportWorker) ProcessBatch(ctx context.Context) (exported int, err error) {
	pending, err := w.queue.ListPendingExport(ctx, w.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending exports", "error", err)
		return 0, fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := w.writer.Append(ctx, pending); err != nil {
		slog.ErrorContext(ctx, "Failed to append export batch",
			"count", len(pending), "error", err)
		for _, t := range pending {
			if markErr := w.queue.MarkExportError(ctx, t.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark export error",
					"id", t.ID, "error", markErr)
			}
		}
		return 0, fmt.Errorf("append export batch: %w", err)
	}

	for _, t := range pending {
		if err := w.queue.MarkExported(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark transaction exported",
				"id", t.ID, "error", err)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Export batch completed", "exported", exported)
	return exported, nil
}
