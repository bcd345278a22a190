package core

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Food", "Food"},
		{"  Food  ", "Food"},
		{"", CategoryOther},
		{"   ", CategoryOther},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID: "t1", UserID: "u1", Kind: KindExpense, Amount: Money{Cents: 100},
		Category: "Food", Date: NewDate(2024, 1, 1), Origin: OriginManual,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Amount = Money{Cents: 0}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: got %v, want ErrInvalidAmount", err)
	}

	bad = good
	bad.Category = "  "
	if err := bad.Validate(); err == nil {
		t.Error("blank category: expected error")
	}

	bad = good
	bad.Origin = OriginRecurring
	if err := bad.Validate(); err == nil {
		t.Error("generated without recurring reference: expected error")
	}
	bad.RecurringID = "r1"
	if err := bad.Validate(); err != nil {
		t.Errorf("generated with reference: got %v", err)
	}
}

func TestRecurringDefinitionValidate(t *testing.T) {
	good := RecurringDefinition{
		ID: "r1", UserID: "u1", Name: "Rent", Amount: Money{Cents: 90000},
		Category: "Housing", Frequency: Monthly, Active: true, NextDue: NewDate(2024, 2, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Frequency = "sometimes"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("unknown frequency: got %v, want ErrInvalidFrequency", err)
	}

	bad = good
	bad.NextDue = Date{Time: time.Time{}}
	if err := bad.Validate(); err == nil {
		t.Error("zero next due: expected error")
	}

	bad = good
	bad.Amount = Money{Cents: -1}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: got %v, want ErrInvalidAmount", err)
	}
}

func TestBudgetLimitValidate(t *testing.T) {
	good := BudgetLimit{UserID: "u1", Category: "Food", Limit: Money{Cents: 30000}, AlertThreshold: 80}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Limit = Money{Cents: 0}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidBudgetLimit) {
		t.Errorf("zero limit: got %v, want ErrInvalidBudgetLimit", err)
	}

	bad = good
	bad.AlertThreshold = 120
	if err := bad.Validate(); err == nil {
		t.Error("threshold over 100: expected error")
	}
}

func TestBudgetLimitThresholdDefault(t *testing.T) {
	bl := BudgetLimit{UserID: "u1", Category: "Food", Limit: Money{Cents: 100}}
	if got := bl.Threshold(); got != DefaultAlertThreshold {
		t.Fatalf("Threshold() = %d, want %d", got, DefaultAlertThreshold)
	}
	bl.AlertThreshold = 90
	if got := bl.Threshold(); got != 90 {
		t.Fatalf("Threshold() = %d, want 90", got)
	}
}
