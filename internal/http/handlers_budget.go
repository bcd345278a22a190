package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"tally/internal/core"
)

type budgetLimitPayload struct {
	Category       string `json:"category"`
	Limit          string `json:"limit"`
	LimitCents     int64  `json:"limit_cents"`
	AlertThreshold int    `json:"alert_threshold"`
}

type upsertBudgetRequest struct {
	Category       string `json:"category"`
	Limit          string `json:"limit"`
	AlertThreshold int    `json:"alert_threshold,omitempty"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req upsertBudgetRequest
	if err := decodeBody(r, &req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(req.Limit))
	if err != nil {
		respondBadRequest(w, "invalid limit: "+err.Error())
		return
	}

	bl := core.BudgetLimit{
		UserID:         UserID(r),
		Category:       core.NormalizeCategory(sanitizeInput(req.Category)),
		Limit:          core.Money{Cents: cents},
		AlertThreshold: req.AlertThreshold,
	}
	if err := bl.Validate(); err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.UpsertBudgetLimit(r.Context(), bl); err != nil {
		respondError(w, err)
		return
	}

	s.invalidateReports(bl.UserID)
	respondJSON(w, http.StatusOK, budgetLimitPayload{
		Category:       bl.Category,
		Limit:          bl.Limit.DecimalString(),
		LimitCents:     bl.Limit.Cents,
		AlertThreshold: bl.Threshold(),
	})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	limits, err := s.store.ListBudgetLimits(r.Context(), UserID(r))
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]budgetLimitPayload, 0, len(limits))
	for _, bl := range limits {
		out = append(out, budgetLimitPayload{
			Category:       bl.Category,
			Limit:          bl.Limit.DecimalString(),
			LimitCents:     bl.Limit.Cents,
			AlertThreshold: bl.Threshold(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]
	if err := s.store.DeleteBudgetLimit(r.Context(), UserID(r), category); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(UserID(r))
	w.WriteHeader(http.StatusNoContent)
}
