package core

import "time"

// BiweeklyOffsetDays is the fixed biweekly step. It is deliberately 15
// days rather than 14 to mirror twice-a-month pay cycles.
const BiweeklyOffsetDays = 15

// NextOccurrence computes the next due date strictly after d for the
// given frequency. It is a pure function: no I/O, no clock access.
//
// Monthly advances to the same day of the next month, clamped to the
// last day when the target month is shorter (Jan 31 -> Feb 29 on leap
// years, Feb 28 otherwise). Yearly behaves the same at year granularity
// (Feb 29 -> Feb 28 on non-leap targets). An unrecognized frequency is
// an error, never a silent default.
func NextOccurrence(d Date, f Frequency) (Date, error) {
	switch f {
	case Daily:
		return DateOf(d.AddDate(0, 0, 1)), nil
	case Weekly:
		return DateOf(d.AddDate(0, 0, 7)), nil
	case Biweekly:
		return DateOf(d.AddDate(0, 0, BiweeklyOffsetDays)), nil
	case Monthly:
		return addMonthsClamped(d, 1), nil
	case Yearly:
		return addYearsClamped(d, 1), nil
	default:
		return Date{}, ErrInvalidFrequency
	}
}

// MonthlyEquivalent normalizes any frequency to an estimated monthly
// amount for reporting: daily x30, weekly x4, biweekly x2, monthly x1,
// yearly /12. Display estimate only, never used by firing logic.
func MonthlyEquivalent(amount Money, f Frequency) (Money, error) {
	switch f {
	case Daily:
		return Money{Cents: amount.Cents * 30}, nil
	case Weekly:
		return Money{Cents: amount.Cents * 4}, nil
	case Biweekly:
		return Money{Cents: amount.Cents * 2}, nil
	case Monthly:
		return amount, nil
	case Yearly:
		// Half-up rounding to whole cents.
		return Money{Cents: (amount.Cents + 6) / 12}, nil
	default:
		return Money{}, ErrInvalidFrequency
	}
}

// MonthBounds returns the first and last calendar day of the given month.
func MonthBounds(year, month int) (Date, Date) {
	first := NewDate(year, month, 1)
	last := NewDate(year, month, daysInMonth(year, time.Month(month)))
	return first, last
}

func addMonthsClamped(d Date, months int) Date {
	year, month, day := d.Time.Date()
	// Normalize the target month first, then clamp the day.
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	ty, tm, _ := target.Date()
	if max := daysInMonth(ty, tm); day > max {
		day = max
	}
	return NewDate(ty, int(tm), day)
}

func addYearsClamped(d Date, years int) Date {
	year, month, day := d.Time.Date()
	ty := year + years
	if max := daysInMonth(ty, month); day > max {
		day = max
	}
	return NewDate(ty, int(month), day)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
