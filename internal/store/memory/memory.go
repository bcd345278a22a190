// Package memory is a mutex-guarded in-memory implementation of the
// store ports, used for tests and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/store"
)

type budgetEntry struct {
	limit core.BudgetLimit
	seq   int
}

type Store struct {
	mu           sync.Mutex
	seq          int
	transactions map[string]core.Transaction
	txOrder      []string
	recurring    map[string]core.RecurringDefinition
	recOrder     []string
	budgets      map[string]map[string]budgetEntry // userID -> categoryKey
	alertState   map[string]map[string]core.BudgetClassification
	exportState  map[string]store.ExportState
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions: make(map[string]core.Transaction),
		recurring:    make(map[string]core.RecurringDefinition),
		budgets:      make(map[string]map[string]budgetEntry),
		alertState:   make(map[string]map[string]core.BudgetClassification),
		exportState:  make(map[string]store.ExportState),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[t.ID]; !exists {
		s.txOrder = append(s.txOrder, t.ID)
	}
	s.transactions[t.ID] = t
	s.exportState[t.ID] = store.ExportPending
	return nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, q store.TransactionQuery) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range s.txOrder {
		t, ok := s.transactions[id]
		if !ok || t.UserID != userID {
			continue
		}
		if !q.From.IsZero() && t.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && t.Date.After(q.To) {
			continue
		}
		if q.Category != "" && core.CategoryKey(t.Category) != core.CategoryKey(q.Category) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.transactions, id)
	delete(s.exportState, id)
	for i, v := range s.txOrder {
		if v == id {
			s.txOrder = append(s.txOrder[:i], s.txOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) RetagTransaction(_ context.Context, userID, id, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return core.ErrNotFound
	}
	t.Category = core.NormalizeCategory(category)
	s.transactions[id] = t
	return nil
}

func (s *Store) CreateRecurring(_ context.Context, rd core.RecurringDefinition) error {
	if err := rd.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recurring[rd.ID]; !exists {
		s.recOrder = append(s.recOrder, rd.ID)
	}
	s.recurring[rd.ID] = rd
	return nil
}

func (s *Store) GetRecurring(_ context.Context, userID, id string) (core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.recurring[id]
	if !ok || rd.UserID != userID {
		return core.RecurringDefinition{}, core.ErrNotFound
	}
	return rd, nil
}

func (s *Store) ListRecurring(_ context.Context, userID string) ([]core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringDefinition
	for _, id := range s.recOrder {
		if rd, ok := s.recurring[id]; ok && rd.UserID == userID {
			out = append(out, rd)
		}
	}
	return out, nil
}

func (s *Store) ListDueRecurring(_ context.Context, userID string, asOf core.Date) ([]core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringDefinition
	for _, id := range s.recOrder {
		rd, ok := s.recurring[id]
		if !ok || rd.UserID != userID || !rd.Active {
			continue
		}
		if rd.NextDue.After(asOf) {
			continue
		}
		out = append(out, rd)
	}
	return out, nil
}

func (s *Store) ListRecurringUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, rd := range s.recurring {
		if rd.Active {
			seen[rd.UserID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SetRecurringActive(_ context.Context, userID, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.recurring[id]
	if !ok || rd.UserID != userID {
		return core.ErrNotFound
	}
	rd.Active = active
	s.recurring[id] = rd
	return nil
}

func (s *Store) DeleteRecurring(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.recurring[id]
	if !ok || rd.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.recurring, id)
	for i, v := range s.recOrder {
		if v == id {
			s.recOrder = append(s.recOrder[:i], s.recOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) FireRecurring(_ context.Context, userID, id string, prevDue, newDue core.Date, firedAt time.Time, generated []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.recurring[id]
	if !ok || rd.UserID != userID {
		return core.ErrNotFound
	}
	if !rd.NextDue.Equal(prevDue.Time) {
		return core.ErrConcurrencyConflict
	}
	for _, t := range generated {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	for _, t := range generated {
		if _, exists := s.transactions[t.ID]; !exists {
			s.txOrder = append(s.txOrder, t.ID)
		}
		s.transactions[t.ID] = t
		s.exportState[t.ID] = store.ExportPending
	}
	rd.NextDue = newDue
	rd.LastFired = firedAt
	s.recurring[id] = rd
	return nil
}

func (s *Store) UpsertBudgetLimit(_ context.Context, bl core.BudgetLimit) error {
	if err := bl.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.budgets[bl.UserID]
	if user == nil {
		user = make(map[string]budgetEntry)
		s.budgets[bl.UserID] = user
	}
	key := core.CategoryKey(bl.Category)
	entry, exists := user[key]
	if !exists {
		s.seq++
		entry.seq = s.seq
	}
	entry.limit = bl
	user[key] = entry
	return nil
}

func (s *Store) ListBudgetLimits(_ context.Context, userID string) ([]core.BudgetLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]budgetEntry, 0, len(s.budgets[userID]))
	for _, e := range s.budgets[userID] {
		entries = append(entries, e)
	}
	// Creation order, matching the sqlite adapter.
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]core.BudgetLimit, len(entries))
	for i, e := range entries {
		out[i] = e.limit
	}
	return out, nil
}

func (s *Store) DeleteBudgetLimit(_ context.Context, userID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.CategoryKey(category)
	user := s.budgets[userID]
	if _, ok := user[key]; !ok {
		return core.ErrNotFound
	}
	delete(user, key)
	return nil
}

func (s *Store) GetAlertState(_ context.Context, userID, period string) (map[string]core.BudgetClassification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.BudgetClassification)
	for k, v := range s.alertState[userID+"|"+period] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) PutAlertState(_ context.Context, userID, period string, state map[string]core.BudgetClassification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]core.BudgetClassification, len(state))
	for k, v := range state {
		cp[k] = v
	}
	s.alertState[userID+"|"+period] = cp
	return nil
}

func (s *Store) ListPendingExport(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range s.txOrder {
		if s.exportState[id] != store.ExportPending {
			continue
		}
		out = append(out, s.transactions[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id string) error {
	return s.setExportState(id, store.ExportDone)
}

func (s *Store) MarkExportError(_ context.Context, id string) error {
	return s.setExportState(id, store.ExportError)
}

func (s *Store) setExportState(id string, st store.ExportState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return core.ErrNotFound
	}
	s.exportState[id] = st
	return nil
}
