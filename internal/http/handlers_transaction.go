package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/store"
)

type transactionPayload struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Origin      string `json:"origin"`
	RecurringID string `json:"recurring_id,omitempty"`
}

func transactionToPayload(t core.Transaction) transactionPayload {
	return transactionPayload{
		ID:          t.ID,
		Kind:        string(t.Kind),
		Amount:      t.Amount.DecimalString(),
		AmountCents: t.Amount.Cents,
		Category:    t.Category,
		Date:        t.Date.String(),
		Origin:      string(t.Origin),
		RecurringID: t.RecurringID,
	}
}

type createTransactionRequest struct {
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Date     string `json:"date,omitempty"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(req.Amount))
	if err != nil {
		respondBadRequest(w, "invalid amount: "+err.Error())
		return
	}

	in := services.CreateTransactionInput{
		UserID:   UserID(r),
		Kind:     core.TransactionKind(sanitizeInput(req.Kind)),
		Amount:   core.Money{Cents: cents},
		Category: sanitizeInput(req.Category),
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			respondBadRequest(w, "invalid date, expected YYYY-MM-DD")
			return
		}
		in.Date = date
	}

	t, err := s.transactions.Create(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}

	s.invalidateReports(t.UserID)
	respondJSON(w, http.StatusCreated, transactionToPayload(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := store.TransactionQuery{Category: sanitizeInput(r.URL.Query().Get("category"))}
	if v := r.URL.Query().Get("from"); v != "" {
		date, err := parseDate(v)
		if err != nil {
			respondBadRequest(w, "invalid from date, expected YYYY-MM-DD")
			return
		}
		q.From = date
	}
	if v := r.URL.Query().Get("to"); v != "" {
		date, err := parseDate(v)
		if err != nil {
			respondBadRequest(w, "invalid to date, expected YYYY-MM-DD")
			return
		}
		q.To = date
	}

	txs, err := s.transactions.List(r.Context(), UserID(r), q)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]transactionPayload, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionToPayload(t))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.transactions.Delete(r.Context(), UserID(r), id); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(UserID(r))
	w.WriteHeader(http.StatusNoContent)
}

type retagRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleRetagTransaction(w http.ResponseWriter, r *http.Request) {
	var req retagRequest
	if err := decodeBody(r, &req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.transactions.Retag(r.Context(), UserID(r), id, sanitizeInput(req.Category)); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(UserID(r))
	w.WriteHeader(http.StatusNoContent)
}
