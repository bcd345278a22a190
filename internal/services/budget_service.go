package services

import (
	"context"
	"errors"
	"fmt"

	"tally/internal/core"
	"tally/internal/store"
)

// BudgetReport is what the report endpoint renders: the aggregated
// statuses for one month plus any alert events this evaluation produced
// and the categories whose limits were rejected as invalid.
type BudgetReport struct {
	Year             int
	Month            int
	IncludeRecurring bool
	Statuses         []core.BudgetStatus
	Alerts           []core.AlertEvent
	InvalidLimits    []string
}

// BudgetService assembles monthly budget reports from stored
// transactions and limits, delegating the arithmetic to core.Aggregate
// and alert de-duplication to the AlertService.
type BudgetService struct {
	store  store.Store
	alerts *AlertService
}

func NewBudgetService(st store.Store, alerts *AlertService) *BudgetService {
	return &BudgetService{store: st, alerts: alerts}
}

// Report aggregates one calendar month. With includeRecurring the
// monthly equivalents of active recurring definitions are projected on
// top of actual spend; without it only recorded transactions count.
func (s *BudgetService) Report(ctx context.Context, userID string, year, month int, includeRecurring bool) (BudgetReport, error) {
	if month < 1 || month > 12 {
		return BudgetReport{}, fmt.Errorf("invalid month %d", month)
	}
	start, end := core.MonthBounds(year, month)

	txs, err := s.store.ListTransactions(ctx, userID, store.TransactionQuery{From: start, To: end})
	if err != nil {
		return BudgetReport{}, fmt.Errorf("list transactions: %w", err)
	}
	limits, err := s.store.ListBudgetLimits(ctx, userID)
	if err != nil {
		return BudgetReport{}, fmt.Errorf("list budget limits: %w", err)
	}

	opts := core.AggregateOptions{}
	if includeRecurring {
		recurring, err := s.store.ListRecurring(ctx, userID)
		if err != nil {
			return BudgetReport{}, fmt.Errorf("list recurring definitions: %w", err)
		}
		opts = core.AggregateOptions{IncludeRecurring: true, Recurring: recurring}
	}

	statuses, aggErr := core.Aggregate(txs, limits, start, end, opts)
	report := BudgetReport{
		Year:             year,
		Month:            month,
		IncludeRecurring: includeRecurring,
		Statuses:         statuses,
	}
	if aggErr != nil {
		if !errors.Is(aggErr, core.ErrInvalidBudgetLimit) {
			return BudgetReport{}, fmt.Errorf("aggregate: %w", aggErr)
		}
		// Invalid limits are excluded, not fatal; surface the categories.
		for _, bl := range limits {
			if bl.Limit.Cents <= 0 {
				report.InvalidLimits = append(report.InvalidLimits, bl.Category)
			}
		}
	}

	// Alert evaluation only tracks actual spend; projections would flap
	// as definitions are paused and resumed.
	if s.alerts != nil && !includeRecurring {
		events, err := s.alerts.Evaluate(ctx, userID, PeriodKey(year, month), statuses)
		if err != nil {
			return BudgetReport{}, fmt.Errorf("evaluate alerts: %w", err)
		}
		report.Alerts = events
	}

	return report, nil
}

// PeriodKey formats a year+month as the period identifier used by the
// alert state store, e.g. "2024-03".
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
