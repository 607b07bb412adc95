package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"finanze/internal/core"
)

type categorySpend struct {
	CategoryID string     `json:"categoryId"`
	Spent      core.Money `json:"spent"`
}

type insightsResponse struct {
	MonthKey   string           `json:"monthKey"`
	Totals     core.MonthTotals `json:"totals"`
	ByCategory []categorySpend  `json:"byCategory"`
}

// handleInsights aggregates a month's transactions into totals and per
// category spending. Responses are cached per user and month; any
// transaction mutation invalidates the user's cached months.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	monthKey := r.PathValue("monthKey")
	if !core.ValidMonthKey(monthKey) {
		writeError(w, r, fmt.Errorf("insights %q: %w", monthKey, core.ErrInvalidMonthKey))
		return
	}

	key := s.insightsCacheKey(uid, monthKey)
	if cached, ok := s.insightsCache.Get(key); ok {
		insightsCacheHits.WithLabelValues("hit").Inc()
		writeJSON(w, http.StatusOK, cached)
		return
	}
	insightsCacheHits.WithLabelValues("miss").Inc()

	txs, err := s.transactions.ListForMonth(r.Context(), uid, monthKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	spent := core.SpentByCategory(txs)
	byCategory := make([]categorySpend, 0, len(spent))
	for id, m := range spent {
		byCategory = append(byCategory, categorySpend{CategoryID: id, Spent: m})
	}
	sort.Slice(byCategory, func(i, j int) bool {
		if byCategory[i].Spent.Cents != byCategory[j].Spent.Cents {
			return byCategory[i].Spent.Cents > byCategory[j].Spent.Cents
		}
		return byCategory[i].CategoryID < byCategory[j].CategoryID
	})

	resp := insightsResponse{
		MonthKey:   monthKey,
		Totals:     core.TotalIncomeExpense(txs),
		ByCategory: byCategory,
	}
	s.insightsCache.Set(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleExportMonth streams the month's transactions as an XLSX attachment.
func (s *Server) handleExportMonth(w http.ResponseWriter, r *http.Request) {
	monthKey := r.PathValue("monthKey")
	data, err := s.exporter.MonthXLSX(r.Context(), userID(r), monthKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("transactions-%s.xlsx", monthKey)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "Export write failed", "error", err, "month_key", monthKey)
	}
}
