package http

import (
	"fmt"
	"net/http"

	"tally/internal/services"
)

type budgetStatusPayload struct {
	Category       string  `json:"category"`
	Spent          string  `json:"spent"`
	SpentCents     int64   `json:"spent_cents"`
	Limit          string  `json:"limit"`
	LimitCents     int64   `json:"limit_cents"`
	Percent        float64 `json:"percent"`
	Threshold      int     `json:"threshold"`
	Classification string  `json:"classification"`
}

type alertEventPayload struct {
	Kind     string  `json:"kind"`
	Category string  `json:"category"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Percent  float64 `json:"percent"`
}

type budgetReportPayload struct {
	Year             int                   `json:"year"`
	Month            int                   `json:"month"`
	IncludeRecurring bool                  `json:"include_recurring"`
	Statuses         []budgetStatusPayload `json:"statuses"`
	Alerts           []alertEventPayload   `json:"alerts,omitempty"`
	InvalidLimits    []string              `json:"invalid_limits,omitempty"`
}

func reportToPayload(rep services.BudgetReport) budgetReportPayload {
	out := budgetReportPayload{
		Year:             rep.Year,
		Month:            rep.Month,
		IncludeRecurring: rep.IncludeRecurring,
		Statuses:         make([]budgetStatusPayload, 0, len(rep.Statuses)),
		InvalidLimits:    rep.InvalidLimits,
	}
	for _, st := range rep.Statuses {
		out.Statuses = append(out.Statuses, budgetStatusPayload{
			Category:       st.Category,
			Spent:          st.Spent.DecimalString(),
			SpentCents:     st.Spent.Cents,
			Limit:          st.Limit.DecimalString(),
			LimitCents:     st.Limit.Cents,
			Percent:        st.Percent,
			Threshold:      st.Threshold,
			Classification: string(st.Classification),
		})
	}
	for _, ev := range rep.Alerts {
		out.Alerts = append(out.Alerts, alertEventPayload{
			Kind:     string(ev.Kind),
			Category: ev.Category,
			From:     string(ev.From),
			To:       string(ev.To),
			Percent:  ev.Percent,
		})
	}
	return out
}

func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	if month < 1 || month > 12 {
		respondBadRequest(w, fmt.Sprintf("invalid month %d", month))
		return
	}
	includeRecurring := boolQuery(r, "include_recurring")
	userID := UserID(r)

	// Only projected reports are cached. Actual-spend reports evaluate
	// alerts, and serving those from cache would swallow threshold
	// crossings.
	cacheKey := fmt.Sprintf("%s:%s:projected", userID, services.PeriodKey(year, month))
	if includeRecurring {
		if rep, ok := s.reportCache.Get(cacheKey); ok {
			respondJSON(w, http.StatusOK, reportToPayload(rep))
			return
		}
	}

	rep, err := s.budgets.Report(r.Context(), userID, year, month, includeRecurring)
	if err != nil {
		respondError(w, err)
		return
	}

	if includeRecurring {
		s.reportCache.Set(cacheKey, rep)
	}

	for _, ev := range rep.Alerts {
		s.logger.InfoContext(r.Context(), "Budget alert raised",
			"user_id", userID,
			"category", ev.Category,
			"from", string(ev.From),
			"to", string(ev.To),
			"percent", ev.Percent)
	}

	respondJSON(w, http.StatusOK, reportToPayload(rep))
}
