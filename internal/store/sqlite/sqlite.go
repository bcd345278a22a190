// Package sqlite persists the tracker's entities in a local SQLite
// database. All calendar dates are stored as YYYY-MM-DD strings so that
// range queries stay plain string comparisons.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tally/internal/core"
	"tally/internal/store"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, kind, amount_cents, category, occurred_on, origin, recurring_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Kind), t.Amount.Cents, t.Category,
		t.Date.Format(dateLayout), string(t.Origin), nullString(t.RecurringID))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"user_id", t.UserID,
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents,
		"category", t.Category,
		"origin", t.Origin)
	return nil
}

const transactionColumns = `id, user_id, kind, amount_cents, category, occurred_on, origin, recurring_id`

func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string, q store.TransactionQuery) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if !q.From.IsZero() {
		query += ` AND occurred_on >= ?`
		args = append(args, q.From.Format(dateLayout))
	}
	if !q.To.IsZero() {
		query += ` AND occurred_on <= ?`
		args = append(args, q.To.Format(dateLayout))
	}
	if q.Category != "" {
		query += ` AND lower(trim(category)) = ?`
		args = append(args, core.CategoryKey(q.Category))
	}
	query += ` ORDER BY occurred_on, rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) RetagTransaction(ctx context.Context, userID, id, category string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category = ? WHERE id = ? AND user_id = ?`,
		core.NormalizeCategory(category), id, userID)
	if err != nil {
		return fmt.Errorf("retag transaction: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) CreateRecurring(ctx context.Context, rd core.RecurringDefinition) error {
	if err := rd.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_definitions (id, user_id, name, amount_cents, category, frequency, active, next_due, last_fired)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rd.ID, rd.UserID, rd.Name, rd.Amount.Cents, rd.Category,
		string(rd.Frequency), boolToInt(rd.Active), rd.NextDue.Format(dateLayout), nullTime(rd.LastFired))
	if err != nil {
		return fmt.Errorf("insert recurring definition: %w", err)
	}

	slog.InfoContext(ctx, "Recurring definition saved",
		"id", rd.ID,
		"user_id", rd.UserID,
		"name", rd.Name,
		"frequency", rd.Frequency,
		"next_due", rd.NextDue.String())
	return nil
}

const recurringColumns = `id, user_id, name, amount_cents, category, frequency, active, next_due, last_fired`

func (r *Repository) GetRecurring(ctx context.Context, userID, id string) (core.RecurringDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_definitions WHERE id = ? AND user_id = ?`, id, userID)
	rd, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringDefinition{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("get recurring definition: %w", err)
	}
	return rd, nil
}

func (r *Repository) ListRecurring(ctx context.Context, userID string) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_definitions WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring definitions: %w", err)
	}
	defer rows.Close()
	return collectRecurring(rows)
}

func (r *Repository) ListDueRecurring(ctx context.Context, userID string, asOf core.Date) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_definitions
		WHERE user_id = ? AND active = 1 AND next_due <= ?
		ORDER BY next_due, rowid`,
		userID, asOf.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list due recurring definitions: %w", err)
	}
	defer rows.Close()
	return collectRecurring(rows)
}

func (r *Repository) ListRecurringUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM recurring_definitions WHERE active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) SetRecurringActive(ctx context.Context, userID, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_definitions SET active = ? WHERE id = ? AND user_id = ?`,
		boolToInt(active), id, userID)
	if err != nil {
		return fmt.Errorf("set recurring active: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) DeleteRecurring(ctx context.Context, userID, id string) error {
	// Generated transactions survive their template.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_definitions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring definition: %w", err)
	}
	return requireAffected(res)
}

// FireRecurring inserts the generated transactions and advances next-due
// in one database transaction, in that order. The advance is guarded on
// the due date observed by the caller: if another checker already moved
// it, nothing is committed and core.ErrConcurrencyConflict surfaces.
func (r *Repository) FireRecurring(ctx context.Context, userID, id string, prevDue, newDue core.Date, firedAt time.Time, generated []core.Transaction) error {
	for _, t := range generated {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fire transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range generated {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, kind, amount_cents, category, occurred_on, origin, recurring_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, string(t.Kind), t.Amount.Cents, t.Category,
			t.Date.Format(dateLayout), string(t.Origin), nullString(t.RecurringID)); err != nil {
			return fmt.Errorf("insert generated transaction: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE recurring_definitions SET next_due = ?, last_fired = ?
		WHERE id = ? AND user_id = ? AND next_due = ?`,
		newDue.Format(dateLayout), firedAt.UTC(), id, userID, prevDue.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("advance next due: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance next due: %w", err)
	}
	if n == 0 {
		return core.ErrConcurrencyConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fire transaction: %w", err)
	}

	slog.InfoContext(ctx, "Recurring definition fired",
		"id", id,
		"user_id", userID,
		"generated", len(generated),
		"next_due", newDue.String())
	return nil
}

func (r *Repository) UpsertBudgetLimit(ctx context.Context, bl core.BudgetLimit) error {
	if err := bl.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_limits (user_id, category, category_key, limit_cents, alert_threshold)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category_key) DO UPDATE SET
			category = excluded.category,
			limit_cents = excluded.limit_cents,
			alert_threshold = excluded.alert_threshold`,
		bl.UserID, bl.Category, core.CategoryKey(bl.Category), bl.Limit.Cents, bl.Threshold())
	if err != nil {
		return fmt.Errorf("upsert budget limit: %w", err)
	}
	return nil
}

func (r *Repository) ListBudgetLimits(ctx context.Context, userID string) ([]core.BudgetLimit, error) {
	// rowid order preserves creation order, which the aggregator's output
	// ordering depends on.
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, category, limit_cents, alert_threshold
		FROM budget_limits WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budget limits: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetLimit
	for rows.Next() {
		var bl core.BudgetLimit
		var cents int64
		if err := rows.Scan(&bl.UserID, &bl.Category, &cents, &bl.AlertThreshold); err != nil {
			return nil, fmt.Errorf("scan budget limit: %w", err)
		}
		bl.Limit = core.Money{Cents: cents}
		out = append(out, bl)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteBudgetLimit(ctx context.Context, userID, category string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budget_limits WHERE user_id = ? AND category_key = ?`,
		userID, core.CategoryKey(category))
	if err != nil {
		return fmt.Errorf("delete budget limit: %w", err)
	}
	return requireAffected(res)
}

func (r *Repository) GetAlertState(ctx context.Context, userID, period string) (map[string]core.BudgetClassification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_key, classification FROM budget_alert_state
		WHERE user_id = ? AND period = ?`, userID, period)
	if err != nil {
		return nil, fmt.Errorf("get alert state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.BudgetClassification)
	for rows.Next() {
		var key, class string
		if err := rows.Scan(&key, &class); err != nil {
			return nil, fmt.Errorf("scan alert state: %w", err)
		}
		out[key] = core.BudgetClassification(class)
	}
	return out, rows.Err()
}

func (r *Repository) PutAlertState(ctx context.Context, userID, period string, state map[string]core.BudgetClassification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alert state update: %w", err)
	}
	defer tx.Rollback()

	for key, class := range state {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO budget_alert_state (user_id, period, category_key, classification, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (user_id, period, category_key) DO UPDATE SET
				classification = excluded.classification,
				updated_at = CURRENT_TIMESTAMP`,
			userID, period, key, string(class)); err != nil {
			return fmt.Errorf("upsert alert state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert state update: %w", err)
	}
	return nil
}

func (r *Repository) ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE export_state = 'pending' ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) MarkExported(ctx context.Context, id string) error {
	return r.setExportState(ctx, id, store.ExportDone)
}

func (r *Repository) MarkExportError(ctx context.Context, id string) error {
	return r.setExportState(ctx, id, store.ExportError)
}

func (r *Repository) setExportState(ctx context.Context, id string, st store.ExportState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_state = ? WHERE id = ?`, string(st), id)
	if err != nil {
		return fmt.Errorf("set export state: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		kind       string
		cents      int64
		occurredOn string
		origin     string
		recurring  sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &kind, &cents, &t.Category, &occurredOn, &origin, &recurring); err != nil {
		return core.Transaction{}, err
	}
	d, err := time.Parse(dateLayout, occurredOn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_on %q: %w", occurredOn, err)
	}
	t.Kind = core.TransactionKind(kind)
	t.Amount = core.Money{Cents: cents}
	t.Date = core.Date{Time: d}
	t.Origin = core.TransactionOrigin(origin)
	if recurring.Valid {
		t.RecurringID = recurring.String
	}
	return t, nil
}

func scanRecurring(row rowScanner) (core.RecurringDefinition, error) {
	var (
		rd        core.RecurringDefinition
		cents     int64
		frequency string
		active    int
		nextDue   string
		lastFired sql.NullTime
	)
	if err := row.Scan(&rd.ID, &rd.UserID, &rd.Name, &cents, &rd.Category, &frequency, &active, &nextDue, &lastFired); err != nil {
		return core.RecurringDefinition{}, err
	}
	d, err := time.Parse(dateLayout, nextDue)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("parse next_due %q: %w", nextDue, err)
	}
	rd.Amount = core.Money{Cents: cents}
	rd.Frequency = core.Frequency(frequency)
	rd.Active = active != 0
	rd.NextDue = core.Date{Time: d}
	if lastFired.Valid {
		rd.LastFired = lastFired.Time
	}
	return rd, nil
}

func collectRecurring(rows *sql.Rows) ([]core.RecurringDefinition, error) {
	var out []core.RecurringDefinition
	for rows.Next() {
		rd, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring definition: %w", err)
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
