package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/store"
	"tally/internal/store/memory"
)

type capturingPublisher struct {
	events []core.AlertEvent
}

func (p *capturingPublisher) PublishAlert(_ context.Context, ev core.AlertEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func TestRecurringService_CreateSetsNextDueToStart(t *testing.T) {
	svc := NewRecurringService(memory.New(), nil, CatchUpSkip)

	rd, err := svc.Create(context.Background(), CreateRecurringInput{
		UserID:    "u1",
		Name:      "Gym",
		Amount:    core.Money{Cents: 4500},
		Category:  "Health",
		Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 3, 10),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !rd.NextDue.Equal(core.NewDate(2024, 3, 10).Time) {
		t.Errorf("next due = %s, want start date 2024-03-10", rd.NextDue)
	}
	if !rd.Active {
		t.Error("new definition should be active")
	}
}

func TestRecurringService_CreateRejectsInvalid(t *testing.T) {
	svc := NewRecurringService(memory.New(), nil, CatchUpSkip)

	_, err := svc.Create(context.Background(), CreateRecurringInput{
		UserID: "u1", Name: "Bad", Amount: core.Money{Cents: 100},
		Category: "x", Frequency: core.Frequency("sometimes"),
	})
	if !errors.Is(err, core.ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}

	_, err = svc.Create(context.Background(), CreateRecurringInput{
		UserID: "u1", Name: "Bad", Amount: core.Money{Cents: 0},
		Category: "x", Frequency: core.Monthly,
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRecurringService_CheckDueFiresAndIsIdempotent(t *testing.T) {
	st := memory.New()
	pub := &capturingPublisher{}
	svc := NewRecurringService(st, pub, CatchUpSkip)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRecurringInput{
		UserID: "u1", Name: "Streaming", Amount: core.Money{Cents: 999},
		Category: "Subscriptions", Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	asOf := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	results, err := svc.CheckDue(ctx, "u1", asOf)
	if err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	if len(results) != 1 || len(results[0].Generated) != 1 {
		t.Fatalf("first check: got %+v, want one firing with one transaction", results)
	}
	gen := results[0].Generated[0]
	if gen.Origin != core.OriginRecurring || gen.RecurringID == "" {
		t.Errorf("generated transaction not marked as recurring: %+v", gen)
	}
	if !results[0].Definition.NextDue.Equal(core.NewDate(2024, 4, 1).Time) {
		t.Errorf("next due = %s, want 2024-04-01", results[0].Definition.NextDue)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != core.AlertRecurringGenerated {
		t.Errorf("expected one recurring.generated event, got %+v", pub.events)
	}

	// Same day again: nothing fires.
	again, err := svc.CheckDue(ctx, "u1", asOf.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("second CheckDue() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second check fired %d results, want 0", len(again))
	}

	txs, err := st.ListTransactions(ctx, "u1", store.TransactionQuery{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("store holds %d transactions, want 1", len(txs))
	}
}

func TestRecurringService_CheckDue_SkipPolicyScenario(t *testing.T) {
	// Monthly $15 Subscriptions starting 2024-01-31, first check only on
	// 2024-02-29: one transaction dated 2024-02-29, one skipped period,
	// next-due 2024-03-29.
	st := memory.New()
	svc := NewRecurringService(st, nil, CatchUpSkip)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRecurringInput{
		UserID: "u1", Name: "Subscriptions", Amount: core.Money{Cents: 1500},
		Category: "Subscriptions", Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 31),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	asOf := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	results, err := svc.CheckDue(ctx, "u1", asOf)
	if err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d firings, want 1", len(results))
	}
	res := results[0]
	if len(res.Generated) != 1 {
		t.Fatalf("skip policy generated %d transactions, want 1", len(res.Generated))
	}
	if !res.Generated[0].Date.Equal(core.NewDate(2024, 2, 29).Time) {
		t.Errorf("transaction dated %s, want 2024-02-29", res.Generated[0].Date)
	}
	if res.Generated[0].Amount.Cents != 1500 {
		t.Errorf("amount = %d cents, want 1500", res.Generated[0].Amount.Cents)
	}
	if res.SkippedPeriods != 1 {
		t.Errorf("skipped periods = %d, want 1", res.SkippedPeriods)
	}
	if !res.Definition.NextDue.Equal(core.NewDate(2024, 3, 29).Time) {
		t.Errorf("next due = %s, want 2024-03-29", res.Definition.NextDue)
	}
}

func TestRecurringService_CheckDue_CatchUpAllPolicy(t *testing.T) {
	st := memory.New()
	svc := NewRecurringService(st, nil, CatchUpAll)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRecurringInput{
		UserID: "u1", Name: "Lunch", Amount: core.Money{Cents: 1200},
		Category: "Food", Frequency: core.Weekly,
		StartDate: core.NewDate(2024, 3, 4),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Three weekly occurrences due: Mar 4, 11, 18.
	asOf := time.Date(2024, 3, 18, 8, 0, 0, 0, time.UTC)
	results, err := svc.CheckDue(ctx, "u1", asOf)
	if err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d firings, want 1", len(results))
	}
	res := results[0]
	if len(res.Generated) != 3 {
		t.Fatalf("catch-up-all generated %d transactions, want 3", len(res.Generated))
	}
	wantDates := []core.Date{core.NewDate(2024, 3, 4), core.NewDate(2024, 3, 11), core.NewDate(2024, 3, 18)}
	for i, want := range wantDates {
		if !res.Generated[i].Date.Equal(want.Time) {
			t.Errorf("transaction %d dated %s, want %s", i, res.Generated[i].Date, want)
		}
	}
	if res.SkippedPeriods != 0 {
		t.Errorf("catch-up-all skipped periods = %d, want 0", res.SkippedPeriods)
	}
	if !res.Definition.NextDue.Equal(core.NewDate(2024, 3, 25).Time) {
		t.Errorf("next due = %s, want 2024-03-25", res.Definition.NextDue)
	}
}

func TestRecurringService_PausedDefinitionsDoNotFire(t *testing.T) {
	st := memory.New()
	svc := NewRecurringService(st, nil, CatchUpSkip)
	ctx := context.Background()

	rd, err := svc.Create(ctx, CreateRecurringInput{
		UserID: "u1", Name: "Rent", Amount: core.Money{Cents: 90000},
		Category: "Housing", Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	active, err := svc.Toggle(ctx, "u1", rd.ID)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if active {
		t.Fatal("expected paused after toggle")
	}

	results, err := svc.CheckDue(ctx, "u1", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("paused definition fired: %+v", results)
	}

	// Resume and it fires again.
	if _, err := svc.Toggle(ctx, "u1", rd.ID); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	results, err = svc.CheckDue(ctx, "u1", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("resumed definition did not fire")
	}
}

func TestRecurringService_DeleteKeepsGeneratedTransactions(t *testing.T) {
	st := memory.New()
	svc := NewRecurringService(st, nil, CatchUpSkip)
	ctx := context.Background()

	rd, err := svc.Create(ctx, CreateRecurringInput{
		UserID: "u1", Name: "Box", Amount: core.Money{Cents: 2500},
		Category: "Hobby", Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.CheckDue(ctx, "u1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("CheckDue() error = %v", err)
	}

	if err := svc.Delete(ctx, "u1", rd.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := st.GetRecurring(ctx, "u1", rd.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("definition still present after delete: %v", err)
	}

	txs, err := st.ListTransactions(ctx, "u1", store.TransactionQuery{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("generated transaction was removed with its template")
	}
}

func TestRecurringService_ToggleUnknownID(t *testing.T) {
	svc := NewRecurringService(memory.New(), nil, CatchUpSkip)
	if _, err := svc.Toggle(context.Background(), "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
