package core

import (
	"errors"
	"fmt"
)

const (
	ClassOnTrack  BudgetClassification = "on-track"
	ClassWarning  BudgetClassification = "warning"
	ClassExceeded BudgetClassification = "exceeded"
)

type (
	BudgetClassification string

	// BudgetStatus is the aggregator's derived output for one category in
	// one period. It is never persisted as a primary record.
	BudgetStatus struct {
		Category       string
		Spent          Money
		Limit          Money
		Percent        float64
		Threshold      int
		Classification BudgetClassification
	}

	// AggregateOptions selects between actual past spend and a
	// recurring-inclusive projection.
	AggregateOptions struct {
		// IncludeRecurring adds the monthly equivalent of each active
		// recurring definition to its category's spend.
		IncludeRecurring bool
		Recurring        []RecurringDefinition
	}
)

// Classify maps a usage percentage to a classification given the alert
// threshold percentage.
func Classify(percent float64, threshold int) BudgetClassification {
	switch {
	case percent >= 100:
		return ClassExceeded
	case percent >= float64(threshold):
		return ClassWarning
	default:
		return ClassOnTrack
	}
}

// rank orders classifications for transition detection.
func (c BudgetClassification) rank() int {
	switch c {
	case ClassWarning:
		return 1
	case ClassExceeded:
		return 2
	default:
		return 0
	}
}

// Aggregate computes per-category spend against the configured limits for
// the window [periodStart, periodEnd], both inclusive.
//
// Only expense transactions count toward spend. Categories match the
// limit's category trimmed and case-insensitively. The result preserves
// the insertion order of limits. A limit with amount <= 0 is a data-entry
// error: it is excluded from the result and reported through the joined
// error (wrapping ErrInvalidBudgetLimit) without failing the other limits.
//
// Aggregate is a pure function of its inputs; identical inputs always
// produce an identical result in identical order.
func Aggregate(txs []Transaction, limits []BudgetLimit, periodStart, periodEnd Date, opts AggregateOptions) ([]BudgetStatus, error) {
	spent := make(map[string]int64)
	for _, t := range txs {
		if t.Kind != KindExpense {
			continue
		}
		if t.Date.Before(periodStart) || t.Date.After(periodEnd) {
			continue
		}
		spent[CategoryKey(t.Category)] += t.Amount.Cents
	}

	if opts.IncludeRecurring {
		for _, rd := range opts.Recurring {
			if !rd.Active {
				continue
			}
			est, err := MonthlyEquivalent(rd.Amount, rd.Frequency)
			if err != nil {
				continue
			}
			spent[CategoryKey(rd.Category)] += est.Cents
		}
	}

	statuses := make([]BudgetStatus, 0, len(limits))
	seen := make(map[string]bool, len(limits))
	var errs []error
	for _, bl := range limits {
		key := CategoryKey(bl.Category)
		if seen[key] {
			continue
		}
		seen[key] = true

		if bl.Limit.Cents <= 0 {
			errs = append(errs, fmt.Errorf("category %q: %w", bl.Category, ErrInvalidBudgetLimit))
			continue
		}

		threshold := bl.Threshold()
		spentCents := spent[key]
		percent := float64(spentCents) / float64(bl.Limit.Cents) * 100
		statuses = append(statuses, BudgetStatus{
			Category:       bl.Category,
			Spent:          Money{Cents: spentCents},
			Limit:          bl.Limit,
			Percent:        percent,
			Threshold:      threshold,
			Classification: Classify(percent, threshold),
		})
	}

	return statuses, errors.Join(errs...)
}
