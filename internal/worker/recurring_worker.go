// Package worker runs the background loops: the periodic recurring
// check and the spreadsheet export queue drain.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/services"
	"tally/internal/store"
)

// userConcurrency bounds how many users one tick checks in parallel.
const userConcurrency = 4

// RecurringWorkerConfig tunes the periodic recurring check
type RecurringWorkerConfig struct {
	CheckInterval time.Duration
}

// DefaultRecurringWorkerConfig returns the default tuning
func DefaultRecurringWorkerConfig() RecurringWorkerConfig {
	return RecurringWorkerConfig{CheckInterval: time.Hour}
}

// RecurringWorker periodically fires due recurring definitions for every
// user that owns one.
type RecurringWorker struct {
	store     store.RecurringStore
	recurring *services.RecurringService
	config    RecurringWorkerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecurringWorker creates the worker
func NewRecurringWorker(st store.RecurringStore, recurring *services.RecurringService, config RecurringWorkerConfig) *RecurringWorker {
	if config.CheckInterval <= 0 {
		config = DefaultRecurringWorkerConfig()
	}
	return &RecurringWorker{
		store:     st,
		recurring: recurring,
		config:    config,
	}
}

// Start begins the check loop. Returns an error if already running.
func (w *RecurringWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("recurring worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Recurring worker started",
		"check_interval", w.config.CheckInterval)

	return nil
}

// Stop gracefully stops the worker and waits for completion.
func (w *RecurringWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Recurring worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the worker is currently running
func (w *RecurringWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *RecurringWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	// First check runs immediately so a restart does not wait a full
	// interval to settle overdue charges.
	w.CheckAll(ctx, time.Now())

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.CheckAll(ctx, time.Now())
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs one check pass over every user with active definitions.
// It returns the number of definitions fired.
func (w *RecurringWorker) CheckAll(ctx context.Context, asOf time.Time) int {
	userIDs, err := w.store.ListRecurringUserIDs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list users with recurring definitions", "error", err)
		return 0
	}
	if len(userIDs) == 0 {
		return 0
	}

	var (
		mu    sync.Mutex
		fired int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(userConcurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			results, err := w.recurring.CheckDue(gctx, userID, asOf)
			if err != nil {
				// Partial firings already committed; log and move on.
				slog.ErrorContext(gctx, "Recurring check failed",
					"user_id", userID, "error", err)
			}
			mu.Lock()
			fired += len(results)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if fired > 0 {
		slog.InfoContext(ctx, "Recurring check pass completed",
			"users", len(userIDs), "fired", fired)
	}
	return fired
}
