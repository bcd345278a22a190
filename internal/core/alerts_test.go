package core

import "testing"

func status(category string, class BudgetClassification) BudgetStatus {
	return BudgetStatus{Category: category, Classification: class, Threshold: DefaultAlertThreshold}
}

func TestEvaluateTransitions_Sequence(t *testing.T) {
	// [on-track, warning, warning, exceeded] must fire exactly 2 events.
	seq := []BudgetClassification{ClassOnTrack, ClassWarning, ClassWarning, ClassExceeded}

	fired := 0
	prev := []BudgetStatus{status("Food", seq[0])}
	for _, class := range seq[1:] {
		cur := []BudgetStatus{status("Food", class)}
		fired += len(EvaluateTransitions(prev, cur))
		prev = cur
	}
	if fired != 2 {
		t.Fatalf("sequence fired %d events, want 2", fired)
	}
}

func TestEvaluateTransitions(t *testing.T) {
	tests := []struct {
		name string
		prev []BudgetStatus
		cur  []BudgetStatus
		want int
	}{
		{
			name: "no change - no event",
			prev: []BudgetStatus{status("Food", ClassWarning)},
			cur:  []BudgetStatus{status("Food", ClassWarning)},
			want: 0,
		},
		{
			name: "downward transition is silent",
			prev: []BudgetStatus{status("Food", ClassExceeded)},
			cur:  []BudgetStatus{status("Food", ClassWarning)},
			want: 0,
		},
		{
			name: "skip straight to exceeded",
			prev: []BudgetStatus{status("Food", ClassOnTrack)},
			cur:  []BudgetStatus{status("Food", ClassExceeded)},
			want: 1,
		},
		{
			name: "unknown category counts as on-track",
			prev: nil,
			cur:  []BudgetStatus{status("Food", ClassExceeded)},
			want: 1,
		},
		{
			name: "category matching is case-insensitive",
			prev: []BudgetStatus{status("food", ClassWarning)},
			cur:  []BudgetStatus{status("Food", ClassWarning)},
			want: 0,
		},
		{
			name: "independent categories",
			prev: []BudgetStatus{status("Food", ClassOnTrack), status("Rent", ClassOnTrack)},
			cur:  []BudgetStatus{status("Food", ClassWarning), status("Rent", ClassExceeded)},
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateTransitions(tt.prev, tt.cur)
			if len(got) != tt.want {
				t.Errorf("EvaluateTransitions() fired %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestRecurringFiredEvent(t *testing.T) {
	rd := RecurringDefinition{
		ID: "r1", UserID: "u1", Name: "Rent", Amount: Money{Cents: 90000},
		Category: "Housing", Frequency: Monthly, Active: true, NextDue: NewDate(2024, 2, 1),
	}
	ev := RecurringFiredEvent(rd)
	if ev.Kind != AlertRecurringGenerated {
		t.Fatalf("kind = %s, want %s", ev.Kind, AlertRecurringGenerated)
	}
	if ev.RecurringID != "r1" || ev.UserID != "u1" || ev.Amount.Cents != 90000 {
		t.Fatalf("unexpected event payload: %+v", ev)
	}
}
