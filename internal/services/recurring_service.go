// Package services implements the business logic of the tracker on top
// of the store ports: the recurring transaction registry, the budget
// report service and the alert evaluation service.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

// CatchUpPolicy names the behavior when CheckDue finds a definition that
// missed several periods (e.g. the worker was down).
type CatchUpPolicy string

const (
	// CatchUpSkip fires once, jumps next-due past all missed periods and
	// reports how many were skipped. This is the default.
	CatchUpSkip CatchUpPolicy = "skip"
	// CatchUpAll fires one generated transaction per missed period, each
	// dated at its own occurrence date.
	CatchUpAll CatchUpPolicy = "all"
)

func (p CatchUpPolicy) Validate() error {
	switch p {
	case CatchUpSkip, CatchUpAll:
		return nil
	default:
		return fmt.Errorf("unknown catch-up policy: %s", p)
	}
}

// AlertPublisher delivers alert events to the outside world. A nil
// publisher is valid and means local-only operation.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, ev core.AlertEvent) error
}

// RecurringService owns the lifecycle of recurring definitions and
// decides when they fire.
type RecurringService struct {
	store     store.Store
	publisher AlertPublisher
	policy    CatchUpPolicy
}

func NewRecurringService(st store.Store, publisher AlertPublisher, policy CatchUpPolicy) *RecurringService {
	if policy == "" {
		policy = CatchUpSkip
	}
	return &RecurringService{store: st, publisher: publisher, policy: policy}
}

// CreateRecurringInput carries the user-supplied fields of a new
// definition. StartDate defaults to today; the first firing happens as
// soon as a check runs with asOf >= StartDate, so a start date of today
// or earlier means an immediate first charge.
type CreateRecurringInput struct {
	UserID    string
	Name      string
	Amount    core.Money
	Category  string
	Frequency core.Frequency
	StartDate core.Date
}

func (s *RecurringService) Create(ctx context.Context, in CreateRecurringInput) (core.RecurringDefinition, error) {
	start := in.StartDate
	if start.IsZero() {
		start = core.DateOf(time.Now())
	}
	rd := core.RecurringDefinition{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Name:      in.Name,
		Amount:    in.Amount,
		Category:  core.NormalizeCategory(in.Category),
		Frequency: in.Frequency,
		Active:    true,
		NextDue:   start,
	}
	if err := rd.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}
	if err := s.store.CreateRecurring(ctx, rd); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("create recurring definition: %w", err)
	}
	return rd, nil
}

func (s *RecurringService) List(ctx context.Context, userID string) ([]core.RecurringDefinition, error) {
	return s.store.ListRecurring(ctx, userID)
}

// Toggle flips the active flag and returns the new state. Paused
// definitions are excluded from CheckDue.
func (s *RecurringService) Toggle(ctx context.Context, userID, id string) (bool, error) {
	rd, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if err := s.store.SetRecurringActive(ctx, userID, id, !rd.Active); err != nil {
		return false, fmt.Errorf("toggle recurring definition: %w", err)
	}
	return !rd.Active, nil
}

// Delete removes the definition. Transactions it already generated are
// untouched.
func (s *RecurringService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteRecurring(ctx, userID, id)
}

// FireResult describes one definition's firing within a CheckDue call.
type FireResult struct {
	Definition     core.RecurringDefinition
	Generated      []core.Transaction
	SkippedPeriods int
}

// CheckDue fires every active definition of the user whose next-due is on
// or before asOf. For each firing the generated transactions and the
// next-due advance are persisted atomically, emit before advance, so a
// crash can only re-fire, never silently skip a charge.
//
// next-due always advances from the definition's own previous next-due,
// never from asOf, so delayed checks cannot drift the schedule. After a
// firing next-due is strictly after asOf, which makes a repeated CheckDue
// on the same day a no-op. Missed periods follow the configured
// CatchUpPolicy.
//
// A conflict or failure on one definition does not stop the others; all
// errors are joined into the returned error.
func (s *RecurringService) CheckDue(ctx context.Context, userID string, asOf time.Time) ([]FireResult, error) {
	asOfDate := core.DateOf(asOf)
	due, err := s.store.ListDueRecurring(ctx, userID, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("list due recurring definitions: %w", err)
	}

	var (
		results []FireResult
		errs    []error
	)
	for _, rd := range due {
		res, err := s.fire(ctx, rd, asOfDate, asOf)
		if err != nil {
			if errors.Is(err, core.ErrConcurrencyConflict) {
				slog.WarnContext(ctx, "Recurring definition advanced concurrently",
					"id", rd.ID, "user_id", rd.UserID)
			} else {
				slog.ErrorContext(ctx, "Failed to fire recurring definition",
					"id", rd.ID, "user_id", rd.UserID, "error", err)
			}
			errs = append(errs, fmt.Errorf("definition %s: %w", rd.ID, err))
			continue
		}
		results = append(results, res)

		if res.SkippedPeriods > 0 {
			slog.WarnContext(ctx, "Recurring definition skipped missed periods",
				"id", rd.ID,
				"user_id", rd.UserID,
				"skipped_periods", res.SkippedPeriods,
				"policy", s.policy)
		}

		for _, t := range res.Generated {
			ev := core.RecurringFiredEvent(res.Definition)
			ev.Amount = t.Amount
			s.publish(ctx, ev)
		}
	}

	return results, errors.Join(errs...)
}

func (s *RecurringService) fire(ctx context.Context, rd core.RecurringDefinition, asOfDate core.Date, asOf time.Time) (FireResult, error) {
	// Walk the schedule from the definition's own next-due until it is
	// strictly past asOf, collecting every missed occurrence.
	var occurrences []core.Date
	next := rd.NextDue
	for !next.After(asOfDate) {
		occurrences = append(occurrences, next)
		advanced, err := core.NextOccurrence(next, rd.Frequency)
		if err != nil {
			return FireResult{}, err
		}
		next = advanced
	}

	var generated []core.Transaction
	skipped := 0
	switch s.policy {
	case CatchUpAll:
		for _, occ := range occurrences {
			generated = append(generated, s.generatedTransaction(rd, occ))
		}
	default: // CatchUpSkip
		generated = []core.Transaction{s.generatedTransaction(rd, asOfDate)}
		skipped = len(occurrences) - 1
	}

	if err := s.store.FireRecurring(ctx, rd.UserID, rd.ID, rd.NextDue, next, asOf, generated); err != nil {
		return FireResult{}, err
	}

	fired := rd
	fired.NextDue = next
	fired.LastFired = asOf
	return FireResult{Definition: fired, Generated: generated, SkippedPeriods: skipped}, nil
}

func (s *RecurringService) generatedTransaction(rd core.RecurringDefinition, on core.Date) core.Transaction {
	return core.Transaction{
		ID:          uuid.NewString(),
		UserID:      rd.UserID,
		Kind:        core.KindExpense,
		Amount:      rd.Amount,
		Category:    rd.Category,
		Date:        on,
		Origin:      core.OriginRecurring,
		RecurringID: rd.ID,
	}
}

func (s *RecurringService) publish(ctx context.Context, ev core.AlertEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAlert(ctx, ev); err != nil {
		// Firing already committed; the event is best-effort.
		slog.ErrorContext(ctx, "Failed to publish recurring alert event",
			"recurring_id", ev.RecurringID, "error", err)
	}
}
