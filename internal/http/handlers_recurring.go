package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tally/internal/core"
	"tally/internal/services"
)

type recurringPayload struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Amount            string `json:"amount"`
	AmountCents       int64  `json:"amount_cents"`
	Category          string `json:"category"`
	Frequency         string `json:"frequency"`
	Active            bool   `json:"active"`
	NextDue           string `json:"next_due"`
	LastFired         string `json:"last_fired,omitempty"`
	MonthlyEquivalent string `json:"monthly_equivalent,omitempty"`
}

func recurringToPayload(rd core.RecurringDefinition, monthly core.Money) recurringPayload {
	p := recurringPayload{
		ID:                rd.ID,
		Name:              rd.Name,
		Amount:            rd.Amount.DecimalString(),
		AmountCents:       rd.Amount.Cents,
		Category:          rd.Category,
		Frequency:         string(rd.Frequency),
		Active:            rd.Active,
		NextDue:           rd.NextDue.String(),
		MonthlyEquivalent: monthly.DecimalString(),
	}
	if !rd.LastFired.IsZero() {
		p.LastFired = rd.LastFired.UTC().Format(time.RFC3339)
	}
	return p
}

type createRecurringRequest struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date,omitempty"`
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req createRecurringRequest
	if err := decodeBody(r, &req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(req.Amount))
	if err != nil {
		respondBadRequest(w, "invalid amount: "+err.Error())
		return
	}

	in := services.CreateRecurringInput{
		UserID:    UserID(r),
		Name:      sanitizeInput(req.Name),
		Amount:    core.Money{Cents: cents},
		Category:  sanitizeInput(req.Category),
		Frequency: core.Frequency(sanitizeInput(req.Frequency)),
	}
	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			respondBadRequest(w, "invalid start_date, expected YYYY-MM-DD")
			return
		}
		in.StartDate = start
	}

	rd, err := s.recurring.Create(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}

	monthly, _ := core.MonthlyEquivalent(rd.Amount, rd.Frequency)
	respondJSON(w, http.StatusCreated, recurringToPayload(rd, monthly))
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	defs, err := s.recurring.List(r.Context(), UserID(r))
	if err != nil {
		respondError(w, err)
		return
	}

	monthly, err := services.MonthlyEquivalents(defs)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]recurringPayload, 0, len(defs))
	for _, rd := range defs {
		out = append(out, recurringToPayload(rd, monthly[rd.ID]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	active, err := s.recurring.Toggle(r.Context(), UserID(r), id)
	if err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(UserID(r))
	respondJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.recurring.Delete(r.Context(), UserID(r), id); err != nil {
		respondError(w, err)
		return
	}
	s.invalidateReports(UserID(r))
	w.WriteHeader(http.StatusNoContent)
}

type fireResultPayload struct {
	Definition     recurringPayload     `json:"definition"`
	Generated      []transactionPayload `json:"generated"`
	SkippedPeriods int                  `json:"skipped_periods"`
}

// handleCheckRecurring fires everything due for the calling user right
// now. The periodic worker does the same on a schedule; the endpoint
// exists so clients can settle charges on demand.
func (s *Server) handleCheckRecurring(w http.ResponseWriter, r *http.Request) {
	results, err := s.recurring.CheckDue(r.Context(), UserID(r), time.Now())
	if err != nil && len(results) == 0 {
		respondError(w, err)
		return
	}

	out := make([]fireResultPayload, 0, len(results))
	for _, res := range results {
		monthly, _ := core.MonthlyEquivalent(res.Definition.Amount, res.Definition.Frequency)
		p := fireResultPayload{
			Definition:     recurringToPayload(res.Definition, monthly),
			Generated:      make([]transactionPayload, 0, len(res.Generated)),
			SkippedPeriods: res.SkippedPeriods,
		}
		for _, t := range res.Generated {
			p.Generated = append(p.Generated, transactionToPayload(t))
		}
		out = append(out, p)
	}

	if len(results) > 0 {
		s.invalidateReports(UserID(r))
	}
	respondJSON(w, http.StatusOK, out)
}
