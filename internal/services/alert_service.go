package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/store"
)

// AlertService turns budget snapshots into de-duplicated alert events.
// The last observed classification per (user, period, category) is
// persisted, so a threshold crossing fires exactly once even across
// process restarts, and re-evaluating an unchanged month stays silent.
type AlertService struct {
	store     store.AlertStateStore
	publisher AlertPublisher
}

func NewAlertService(st store.AlertStateStore, publisher AlertPublisher) *AlertService {
	return &AlertService{store: st, publisher: publisher}
}

// Evaluate compares the current snapshot against the stored previous one,
// persists the new state and publishes one event per upward transition.
func (s *AlertService) Evaluate(ctx context.Context, userID, period string, current []core.BudgetStatus) ([]core.AlertEvent, error) {
	prevState, err := s.store.GetAlertState(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}

	prev := make([]core.BudgetStatus, 0, len(prevState))
	for key, class := range prevState {
		prev = append(prev, core.BudgetStatus{Category: key, Classification: class})
	}

	events := core.EvaluateTransitions(prev, current)
	for i := range events {
		events[i].UserID = userID
	}

	newState := make(map[string]core.BudgetClassification, len(current))
	for _, st := range current {
		newState[core.CategoryKey(st.Category)] = st.Classification
	}
	if err := s.store.PutAlertState(ctx, userID, period, newState); err != nil {
		return nil, fmt.Errorf("persist alert state: %w", err)
	}

	for _, ev := range events {
		slog.InfoContext(ctx, "Budget threshold crossed",
			"user_id", userID,
			"period", period,
			"category", ev.Category,
			"from", ev.From,
			"to", ev.To,
			"percent", fmt.Sprintf("%.1f", ev.Percent))
		if s.publisher != nil {
			if err := s.publisher.PublishAlert(ctx, ev); err != nil {
				slog.ErrorContext(ctx, "Failed to publish alert event",
					"user_id", userID, "category", ev.Category, "error", err)
			}
		}
	}

	return events, nil
}
