package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

const (
	OriginManual    TransactionOrigin = "manual"
	OriginRecurring TransactionOrigin = "recurring"
	OriginSynced    TransactionOrigin = "synced"
)

// CategoryOther is the sentinel bucket for transactions whose category is
// missing or blank after trimming.
const CategoryOther = "Other"

// DefaultAlertThreshold is the percentage at which a budget turns into a
// warning when the limit does not configure its own threshold.
const DefaultAlertThreshold = 80

type (
	Frequency         string
	TransactionKind   string
	TransactionOrigin string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single financial movement. Amounts are always
	// positive; direction is carried by Kind. Transactions are immutable
	// once created, except for category re-tagging.
	Transaction struct {
		ID          string
		UserID      string
		Kind        TransactionKind
		Amount      Money
		Category    string
		Date        Date
		Origin      TransactionOrigin
		RecurringID string // set only when Origin == OriginRecurring
	}

	// RecurringDefinition is a template that spawns Transactions when its
	// due date arrives. NextDue is always present and strictly increases
	// across firings.
	RecurringDefinition struct {
		ID        string
		UserID    string
		Name      string
		Amount    Money
		Category  string
		Frequency Frequency
		Active    bool
		NextDue   Date
		LastFired time.Time // zero until the first firing
	}

	// BudgetLimit is a per-category monthly ceiling. Category is the
	// natural key within a user's scope.
	BudgetLimit struct {
		UserID         string
		Category       string
		Limit          Money
		AlertThreshold int // percent, 0 means "use DefaultAlertThreshold"
	}
)

var (
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidBudgetLimit  = errors.New("invalid budget limit")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyName           = errors.New("empty name")
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func (k TransactionKind) Validate() error {
	switch k {
	case KindExpense, KindIncome:
		return nil
	default:
		return ErrInvalidKind
	}
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as an int (1-12).
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d falls on a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeCategory trims the category and substitutes the sentinel
// CategoryOther when nothing is left. This is the single normalization
// point for category strings entering the system.
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryOther
	}
	return s
}

// CategoryKey folds a category for matching: trimmed, case-insensitive.
func CategoryKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return errors.New("empty user id")
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return errors.New("empty category")
	}
	switch t.Origin {
	case OriginManual, OriginRecurring, OriginSynced:
	default:
		return errors.New("invalid transaction origin")
	}
	if t.Origin == OriginRecurring && t.RecurringID == "" {
		return errors.New("generated transaction missing recurring reference")
	}
	return nil
}

func (rd RecurringDefinition) Validate() error {
	if strings.TrimSpace(rd.UserID) == "" {
		return errors.New("empty user id")
	}
	if len(strings.TrimSpace(rd.Name)) == 0 {
		return ErrEmptyName
	}
	if len(rd.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := rd.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rd.Category) == "" {
		return errors.New("empty category")
	}
	if err := rd.Frequency.Validate(); err != nil {
		return err
	}
	if err := rd.NextDue.Validate(); err != nil {
		return errors.New("invalid next due date: " + err.Error())
	}
	return nil
}

func (bl BudgetLimit) Validate() error {
	if strings.TrimSpace(bl.UserID) == "" {
		return errors.New("empty user id")
	}
	if strings.TrimSpace(bl.Category) == "" {
		return errors.New("empty category")
	}
	if bl.Limit.Cents <= 0 {
		return ErrInvalidBudgetLimit
	}
	if bl.AlertThreshold < 0 || bl.AlertThreshold > 100 {
		return errors.New("alert threshold must be between 0 and 100")
	}
	return nil
}

// Threshold returns the effective alert threshold for the limit.
func (bl BudgetLimit) Threshold() int {
	if bl.AlertThreshold == 0 {
		return DefaultAlertThreshold
	}
	return bl.AlertThreshold
}
