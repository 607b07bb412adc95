package http

import "net/http"

type upsertBudgetRequest struct {
	MonthKey   string `json:"monthKey"`
	CategoryID string `json:"categoryId"`
	Limit      string `json:"limit"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req upsertBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := parseLimit(req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := s.budgets.Upsert(r.Context(), userID(r), req.MonthKey, req.CategoryID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.budgets.ListForMonth(r.Context(), userID(r), r.PathValue("monthKey"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}
