// Package store defines the persistence ports of the tracker. Adapters
// live in the sqlite and memory subpackages; the factory that selects
// between them is in internal/backend.
package store

import (
	"context"
	"time"

	"tally/internal/core"
)

// TransactionQuery narrows ListTransactions. Zero values mean "no filter".
type TransactionQuery struct {
	From     core.Date
	To       core.Date
	Category string
}

// ExportState tracks whether a transaction has been appended to the
// external spreadsheet backup.
type (
	ExportState string

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID string, q TransactionQuery) ([]core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
		// RetagTransaction is the only in-place mutation a transaction
		// supports.
		RetagTransaction(ctx context.Context, userID, id, category string) error
	}

	RecurringStore interface {
		CreateRecurring(ctx context.Context, rd core.RecurringDefinition) error
		GetRecurring(ctx context.Context, userID, id string) (core.RecurringDefinition, error)
		ListRecurring(ctx context.Context, userID string) ([]core.RecurringDefinition, error)
		// ListDueRecurring returns active definitions with next-due on or
		// before asOf.
		ListDueRecurring(ctx context.Context, userID string, asOf core.Date) ([]core.RecurringDefinition, error)
		// ListRecurringUserIDs returns every user that owns at least one
		// active definition, for the periodic worker.
		ListRecurringUserIDs(ctx context.Context) ([]string, error)
		SetRecurringActive(ctx context.Context, userID, id string, active bool) error
		DeleteRecurring(ctx context.Context, userID, id string) error
		// FireRecurring atomically persists the generated transactions and
		// advances next-due, guarded on the previously observed due date.
		// A mismatch means another checker advanced the definition first
		// and surfaces core.ErrConcurrencyConflict.
		FireRecurring(ctx context.Context, userID, id string, prevDue, newDue core.Date, firedAt time.Time, generated []core.Transaction) error
	}

	BudgetStore interface {
		UpsertBudgetLimit(ctx context.Context, bl core.BudgetLimit) error
		ListBudgetLimits(ctx context.Context, userID string) ([]core.BudgetLimit, error)
		DeleteBudgetLimit(ctx context.Context, userID, category string) error
	}

	// AlertStateStore persists the last observed classification per
	// category and period so threshold-crossing de-duplication survives
	// restarts.
	AlertStateStore interface {
		GetAlertState(ctx context.Context, userID, period string) (map[string]core.BudgetClassification, error)
		PutAlertState(ctx context.Context, userID, period string, state map[string]core.BudgetClassification) error
	}

	// ExportQueue feeds the spreadsheet backup worker.
	ExportQueue interface {
		ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkExported(ctx context.Context, id string) error
		MarkExportError(ctx context.Context, id string) error
	}

	// Store is the full persistence surface an adapter provides.
	Store interface {
		TransactionStore
		RecurringStore
		BudgetStore
		AlertStateStore
		ExportQueue
		Close() error
	}
)

const (
	ExportPending ExportState = "pending"
	ExportDone    ExportState = "done"
	ExportError   ExportState = "error"
)
