package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

// TransactionService orchestrates manual transaction entry. Generated
// and synced transactions enter the store through their own paths; once
// created, all three kinds are deleted and re-tagged the same way here.
type TransactionService struct {
	store store.Store
}

func NewTransactionService(st store.Store) *TransactionService {
	return &TransactionService{store: st}
}

// CreateTransactionInput carries the normalized fields of a manual
// entry. Amount is always positive; direction comes from Kind.
type CreateTransactionInput struct {
	UserID   string
	Kind     core.TransactionKind
	Amount   core.Money
	Category string
	Date     core.Date
	Origin   core.TransactionOrigin
}

func (s *TransactionService) Create(ctx context.Context, in CreateTransactionInput) (core.Transaction, error) {
	origin := in.Origin
	if origin == "" {
		origin = core.OriginManual
	}
	date := in.Date
	if date.IsZero() {
		date = core.DateOf(time.Now())
	}
	t := core.Transaction{
		ID:       uuid.NewString(),
		UserID:   in.UserID,
		Kind:     in.Kind,
		Amount:   in.Amount,
		Category: core.NormalizeCategory(in.Category),
		Date:     date,
		Origin:   origin,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

func (s *TransactionService) List(ctx context.Context, userID string, q store.TransactionQuery) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, q)
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

// Retag changes a transaction's category, the only in-place edit a
// transaction supports.
func (s *TransactionService) Retag(ctx context.Context, userID, id, category string) error {
	return s.store.RetagTransaction(ctx, userID, id, category)
}

// MonthlyEquivalents annotates definitions with their estimated monthly
// cost for display.
func MonthlyEquivalents(defs []core.RecurringDefinition) (map[string]core.Money, error) {
	out := make(map[string]core.Money, len(defs))
	for _, rd := range defs {
		est, err := core.MonthlyEquivalent(rd.Amount, rd.Frequency)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", rd.ID, err)
		}
		out[rd.ID] = est
	}
	return out, nil
}
