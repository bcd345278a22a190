package core

import (
	"errors"
	"testing"
)

func TestNextOccurrence_FixedOffsets(t *testing.T) {
	tests := []struct {
		name string
		d    Date
		f    Frequency
		want Date
	}{
		{"daily", NewDate(2024, 1, 1), Daily, NewDate(2024, 1, 2)},
		{"daily across month end", NewDate(2024, 1, 31), Daily, NewDate(2024, 2, 1)},
		{"weekly", NewDate(2024, 1, 1), Weekly, NewDate(2024, 1, 8)},
		{"biweekly is 15 days not 14", NewDate(2024, 1, 1), Biweekly, NewDate(2024, 1, 16)},
		{"biweekly across month end", NewDate(2024, 1, 25), Biweekly, NewDate(2024, 2, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.d, tt.f)
			if err != nil {
				t.Fatalf("NextOccurrence() error = %v", err)
			}
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextOccurrence(%s, %s) = %s, want %s", tt.d, tt.f, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_MonthlyClamping(t *testing.T) {
	tests := []struct {
		name string
		d    Date
		want Date
	}{
		{"leap february clamp", NewDate(2024, 1, 31), NewDate(2024, 2, 29)},
		{"non-leap february clamp", NewDate(2025, 1, 31), NewDate(2025, 2, 28)},
		{"30-day month clamp", NewDate(2024, 3, 31), NewDate(2024, 4, 30)},
		{"no clamp needed", NewDate(2024, 1, 15), NewDate(2024, 2, 15)},
		{"clamped day does not grow back", NewDate(2024, 2, 29), NewDate(2024, 3, 29)},
		{"december wraps to january", NewDate(2024, 12, 31), NewDate(2025, 1, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.d, Monthly)
			if err != nil {
				t.Fatalf("NextOccurrence() error = %v", err)
			}
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextOccurrence(%s, monthly) = %s, want %s", tt.d, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_Yearly(t *testing.T) {
	tests := []struct {
		name string
		d    Date
		want Date
	}{
		{"plain", NewDate(2024, 5, 10), NewDate(2025, 5, 10)},
		{"feb 29 clamps on non-leap target", NewDate(2024, 2, 29), NewDate(2025, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.d, Yearly)
			if err != nil {
				t.Fatalf("NextOccurrence() error = %v", err)
			}
			if !got.Equal(tt.want.Time) {
				t.Errorf("NextOccurrence(%s, yearly) = %s, want %s", tt.d, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_UnknownFrequency(t *testing.T) {
	_, err := NextOccurrence(NewDate(2024, 1, 1), Frequency("fortnightly"))
	if !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestNextOccurrence_Monotonic(t *testing.T) {
	for _, f := range []Frequency{Daily, Weekly, Biweekly, Monthly, Yearly} {
		d := NewDate(2024, 1, 31)
		for i := 0; i < 50; i++ {
			next, err := NextOccurrence(d, f)
			if err != nil {
				t.Fatalf("%s: step %d: %v", f, i, err)
			}
			if !next.After(d) {
				t.Fatalf("%s: step %d: %s is not after %s", f, i, next, d)
			}
			d = next
		}
	}
}

func TestMonthlyEquivalent(t *testing.T) {
	tests := []struct {
		f    Frequency
		in   int64
		want int64
	}{
		{Daily, 100, 3000},
		{Weekly, 1000, 4000},
		{Biweekly, 5000, 10000},
		{Monthly, 1500, 1500},
		{Yearly, 12000, 1000},
		{Yearly, 100, 8}, // 100/12 = 8.33, half-up to whole cents
	}
	for _, tt := range tests {
		got, err := MonthlyEquivalent(Money{Cents: tt.in}, tt.f)
		if err != nil {
			t.Fatalf("%s: %v", tt.f, err)
		}
		if got.Cents != tt.want {
			t.Errorf("MonthlyEquivalent(%d, %s) = %d, want %d", tt.in, tt.f, got.Cents, tt.want)
		}
	}

	if _, err := MonthlyEquivalent(Money{Cents: 100}, Frequency("hourly")); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestMonthBounds(t *testing.T) {
	first, last := MonthBounds(2024, 2)
	if !first.Equal(NewDate(2024, 2, 1).Time) || !last.Equal(NewDate(2024, 2, 29).Time) {
		t.Fatalf("MonthBounds(2024, 2) = %s..%s", first, last)
	}
	first, last = MonthBounds(2025, 2)
	if !first.Equal(NewDate(2025, 2, 1).Time) || !last.Equal(NewDate(2025, 2, 28).Time) {
		t.Fatalf("MonthBounds(2025, 2) = %s..%s", first, last)
	}
}
