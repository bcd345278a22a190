package services

import (
	"context"
	"testing"

	"tally/internal/core"
	"tally/internal/store/memory"
)

func addExpense(t *testing.T, svc *TransactionService, cents int64, category string, d core.Date) {
	t.Helper()
	_, err := svc.Create(context.Background(), CreateTransactionInput{
		UserID: "u1", Kind: core.KindExpense, Amount: core.Money{Cents: cents},
		Category: category, Date: d,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
}

func TestBudgetService_WarningThenExceededFiresOneEvent(t *testing.T) {
	st := memory.New()
	pub := &capturingPublisher{}
	alerts := NewAlertService(st, pub)
	budgets := NewBudgetService(st, alerts)
	txsvc := NewTransactionService(st)
	ctx := context.Background()

	err := st.UpsertBudgetLimit(ctx, core.BudgetLimit{
		UserID: "u1", Category: "Food", Limit: core.Money{Cents: 30000}, AlertThreshold: 80,
	})
	if err != nil {
		t.Fatalf("upsert limit: %v", err)
	}

	addExpense(t, txsvc, 25000, "Food", core.NewDate(2024, 3, 5))

	report, err := budgets.Report(ctx, "u1", 2024, 3, false)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Statuses[0].Classification != core.ClassWarning {
		t.Fatalf("250/300 classified %s, want warning", report.Statuses[0].Classification)
	}
	// First sight of a warning is itself a crossing from on-track.
	if len(report.Alerts) != 1 {
		t.Fatalf("first report fired %d alerts, want 1", len(report.Alerts))
	}

	// Unchanged month: re-evaluation is silent.
	report, err = budgets.Report(ctx, "u1", 2024, 3, false)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(report.Alerts) != 0 {
		t.Fatalf("unchanged report fired %d alerts, want 0", len(report.Alerts))
	}

	addExpense(t, txsvc, 6000, "Food", core.NewDate(2024, 3, 10))

	report, err = budgets.Report(ctx, "u1", 2024, 3, false)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Statuses[0].Classification != core.ClassExceeded {
		t.Fatalf("310/300 classified %s, want exceeded", report.Statuses[0].Classification)
	}
	if len(report.Alerts) != 1 {
		t.Fatalf("exceeded report fired %d alerts, want exactly 1", len(report.Alerts))
	}
	ev := report.Alerts[0]
	if ev.From != core.ClassWarning || ev.To != core.ClassExceeded {
		t.Fatalf("transition %s -> %s, want warning -> exceeded", ev.From, ev.To)
	}
	if ev.UserID != "u1" {
		t.Fatalf("event user = %q, want u1", ev.UserID)
	}

	// Both events also went through the publisher.
	if len(pub.events) != 2 {
		t.Fatalf("publisher saw %d events, want 2", len(pub.events))
	}
}

// corruptLimitStore simulates limits that went bad after creation, e.g.
// written by an older version without validation.
type corruptLimitStore struct {
	*memory.Store
}

func (s corruptLimitStore) ListBudgetLimits(ctx context.Context, userID string) ([]core.BudgetLimit, error) {
	return []core.BudgetLimit{
		{UserID: userID, Category: "Food", Limit: core.Money{Cents: 0}},
		{UserID: userID, Category: "Transport", Limit: core.Money{Cents: 0}},
		{UserID: userID, Category: "Rent", Limit: core.Money{Cents: 100000}},
	}, nil
}

func TestBudgetService_InvalidLimitsExcludedNotFatal(t *testing.T) {
	st := corruptLimitStore{memory.New()}
	budgets := NewBudgetService(st, nil)

	report, err := budgets.Report(context.Background(), "u1", 2024, 3, false)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(report.Statuses) != 1 || report.Statuses[0].Category != "Rent" {
		t.Fatalf("invalid limits not excluded: %+v", report.Statuses)
	}
	if len(report.InvalidLimits) != 2 {
		t.Fatalf("invalid limits reported = %v, want Food and Transport", report.InvalidLimits)
	}
}

func TestBudgetService_IncludeRecurringProjection(t *testing.T) {
	st := memory.New()
	budgets := NewBudgetService(st, nil)
	recurring := NewRecurringService(st, nil, CatchUpSkip)
	ctx := context.Background()

	if err := st.UpsertBudgetLimit(ctx, core.BudgetLimit{
		UserID: "u1", Category: "Subscriptions", Limit: core.Money{Cents: 5000},
	}); err != nil {
		t.Fatalf("upsert limit: %v", err)
	}
	if _, err := recurring.Create(ctx, CreateRecurringInput{
		UserID: "u1", Name: "Streaming", Amount: core.Money{Cents: 1500},
		Category: "Subscriptions", Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 4, 1),
	}); err != nil {
		t.Fatalf("create recurring: %v", err)
	}

	actual, err := budgets.Report(ctx, "u1", 2024, 3, false)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if actual.Statuses[0].Spent.Cents != 0 {
		t.Fatalf("actual spend = %d, want 0", actual.Statuses[0].Spent.Cents)
	}

	projected, err := budgets.Report(ctx, "u1", 2024, 3, true)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if projected.Statuses[0].Spent.Cents != 1500 {
		t.Fatalf("projected spend = %d, want 1500", projected.Statuses[0].Spent.Cents)
	}
}

func TestBudgetService_RejectsInvalidMonth(t *testing.T) {
	budgets := NewBudgetService(memory.New(), nil)
	if _, err := budgets.Report(context.Background(), "u1", 2024, 13, false); err == nil {
		t.Fatal("expected error for month 13")
	}
}

func TestTransactionService_CreateNormalizesCategory(t *testing.T) {
	st := memory.New()
	svc := NewTransactionService(st)
	ctx := context.Background()

	tx, err := svc.Create(ctx, CreateTransactionInput{
		UserID: "u1", Kind: core.KindExpense, Amount: core.Money{Cents: 100},
		Category: "   ", Date: core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tx.Category != core.CategoryOther {
		t.Fatalf("category = %q, want %q", tx.Category, core.CategoryOther)
	}
	if tx.Origin != core.OriginManual {
		t.Fatalf("origin = %q, want manual", tx.Origin)
	}
}

func TestPeriodKey(t *testing.T) {
	if got := PeriodKey(2024, 3); got != "2024-03" {
		t.Fatalf("PeriodKey(2024, 3) = %q, want 2024-03", got)
	}
	if got := PeriodKey(2024, 12); got != "2024-12" {
		t.Fatalf("PeriodKey(2024, 12) = %q, want 2024-12", got)
	}
}
