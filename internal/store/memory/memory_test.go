package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/store"
)

func seedDefinition(t *testing.T, s *Store) core.RecurringDefinition {
	t.Helper()
	rd := core.RecurringDefinition{
		ID:        "r1",
		UserID:    "u1",
		Name:      "Rent",
		Amount:    core.Money{Cents: 90000},
		Category:  "Housing",
		Frequency: core.Monthly,
		Active:    true,
		NextDue:   core.NewDate(2024, 3, 1),
	}
	if err := s.CreateRecurring(context.Background(), rd); err != nil {
		t.Fatalf("CreateRecurring() error = %v", err)
	}
	return rd
}

func generatedFor(rd core.RecurringDefinition, on core.Date) core.Transaction {
	return core.Transaction{
		ID:          "t1",
		UserID:      rd.UserID,
		Kind:        core.KindExpense,
		Amount:      rd.Amount,
		Category:    rd.Category,
		Date:        on,
		Origin:      core.OriginRecurring,
		RecurringID: rd.ID,
	}
}

func TestFireRecurring_AdvancesAndInserts(t *testing.T) {
	s := New()
	ctx := context.Background()
	rd := seedDefinition(t, s)

	newDue := core.NewDate(2024, 4, 1)
	firedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := generatedFor(rd, rd.NextDue)

	if err := s.FireRecurring(ctx, "u1", "r1", rd.NextDue, newDue, firedAt, []core.Transaction{tx}); err != nil {
		t.Fatalf("FireRecurring() error = %v", err)
	}

	got, err := s.GetRecurring(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("GetRecurring() error = %v", err)
	}
	if !got.NextDue.Equal(newDue.Time) {
		t.Errorf("next due = %s, want %s", got.NextDue, newDue)
	}
	if !got.LastFired.Equal(firedAt) {
		t.Errorf("last fired = %s, want %s", got.LastFired, firedAt)
	}

	txs, err := s.ListTransactions(ctx, "u1", store.TransactionQuery{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 || txs[0].Origin != core.OriginRecurring {
		t.Fatalf("expected 1 generated transaction, got %+v", txs)
	}
}

func TestFireRecurring_StaleDueConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	rd := seedDefinition(t, s)

	firedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := generatedFor(rd, rd.NextDue)
	if err := s.FireRecurring(ctx, "u1", "r1", rd.NextDue, core.NewDate(2024, 4, 1), firedAt, []core.Transaction{first}); err != nil {
		t.Fatalf("first FireRecurring() error = %v", err)
	}

	// A second checker still holding the old due date must lose the race.
	stale := generatedFor(rd, rd.NextDue)
	stale.ID = "t2"
	err := s.FireRecurring(ctx, "u1", "r1", rd.NextDue, core.NewDate(2024, 4, 1), firedAt, []core.Transaction{stale})
	if !errors.Is(err, core.ErrConcurrencyConflict) {
		t.Fatalf("stale FireRecurring() error = %v, want ErrConcurrencyConflict", err)
	}

	txs, err := s.ListTransactions(ctx, "u1", store.TransactionQuery{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("conflicting fire must not insert transactions, got %d", len(txs))
	}
	got, err := s.GetRecurring(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("GetRecurring() error = %v", err)
	}
	if !got.NextDue.Equal(core.NewDate(2024, 4, 1).Time) {
		t.Errorf("next due moved by conflicting fire: %s", got.NextDue)
	}
}

func TestFireRecurring_UnknownDefinition(t *testing.T) {
	s := New()
	err := s.FireRecurring(context.Background(), "u1", "missing",
		core.NewDate(2024, 3, 1), core.NewDate(2024, 4, 1), time.Now(), nil)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("FireRecurring() error = %v, want ErrNotFound", err)
	}
}
