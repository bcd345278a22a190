package core

const (
	AlertThresholdCrossed   AlertKind = "budget.threshold_crossed"
	AlertRecurringGenerated AlertKind = "recurring.generated"
)

type (
	AlertKind string

	// AlertEvent is a notable change worth surfacing to the user: a budget
	// crossing a threshold upward, or a recurring definition firing.
	AlertEvent struct {
		Kind     AlertKind
		UserID   string
		Category string

		// Threshold crossing fields.
		From    BudgetClassification
		To      BudgetClassification
		Percent float64

		// Recurring firing fields.
		RecurringID string
		Name        string
		Amount      Money
	}
)

// EvaluateTransitions compares two BudgetStatus snapshots and emits one
// event per upward threshold crossing. A category absent from prev counts
// as on-track, so an already-exceeded budget alerts on its first
// evaluation. Re-evaluating an unchanged snapshot emits nothing; downward
// transitions are silent.
func EvaluateTransitions(prev, cur []BudgetStatus) []AlertEvent {
	before := make(map[string]BudgetClassification, len(prev))
	for _, s := range prev {
		before[CategoryKey(s.Category)] = s.Classification
	}

	var events []AlertEvent
	for _, s := range cur {
		p, ok := before[CategoryKey(s.Category)]
		if !ok {
			p = ClassOnTrack
		}
		if s.Classification.rank() > p.rank() {
			events = append(events, AlertEvent{
				Kind:     AlertThresholdCrossed,
				Category: s.Category,
				From:     p,
				To:       s.Classification,
				Percent:  s.Percent,
			})
		}
	}
	return events
}

// RecurringFiredEvent builds the audit event emitted for every firing of a
// recurring definition. Firings are always notable, so these events are
// never de-duplicated.
func RecurringFiredEvent(rd RecurringDefinition) AlertEvent {
	return AlertEvent{
		Kind:        AlertRecurringGenerated,
		UserID:      rd.UserID,
		Category:    rd.Category,
		RecurringID: rd.ID,
		Name:        rd.Name,
		Amount:      rd.Amount,
	}
}
