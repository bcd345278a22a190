package worker

import (
	"context"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/store"
	"tally/internal/store/memory"
)

func TestRecurringWorker_CheckAll(t *testing.T) {
	st := memory.New()
	svc := services.NewRecurringService(st, nil, services.CatchUpSkip)

	ctx := context.Background()
	for _, userID := range []string{"u1", "u2"} {
		_, err := svc.Create(ctx, services.CreateRecurringInput{
			UserID:    userID,
			Name:      "Rent",
			Amount:    core.Money{Cents: 90000},
			Category:  "Housing",
			Frequency: core.Monthly,
			StartDate: core.NewDate(2024, 3, 1),
		})
		if err != nil {
			t.Fatalf("create definition for %s: %v", userID, err)
		}
	}

	w := NewRecurringWorker(st, svc, RecurringWorkerConfig{CheckInterval: time.Hour})

	asOf := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if fired := w.CheckAll(ctx, asOf); fired != 2 {
		t.Fatalf("CheckAll() fired = %d, want 2", fired)
	}

	// Every user got their transaction.
	for _, userID := range []string{"u1", "u2"} {
		txs, err := st.ListTransactions(ctx, userID, store.TransactionQuery{})
		if err != nil {
			t.Fatalf("list transactions for %s: %v", userID, err)
		}
		if len(txs) != 1 {
			t.Errorf("user %s has %d transactions, want 1", userID, len(txs))
		}
	}

	// Same-day re-run fires nothing.
	if fired := w.CheckAll(ctx, asOf); fired != 0 {
		t.Errorf("repeat CheckAll() fired = %d, want 0", fired)
	}
}

func TestRecurringWorker_NoUsers(t *testing.T) {
	st := memory.New()
	svc := services.NewRecurringService(st, nil, services.CatchUpSkip)
	w := NewRecurringWorker(st, svc, RecurringWorkerConfig{CheckInterval: time.Hour})

	if fired := w.CheckAll(context.Background(), time.Now()); fired != 0 {
		t.Errorf("CheckAll() on empty store fired = %d, want 0", fired)
	}
}

func TestRecurringWorker_StartStop(t *testing.T) {
	st := memory.New()
	svc := services.NewRecurringService(st, nil, services.CatchUpSkip)
	w := NewRecurringWorker(st, svc, RecurringWorkerConfig{CheckInterval: time.Hour})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
