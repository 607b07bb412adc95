package http

import (
	"net/http"
	"strconv"
	"strings"

	applog "finanze/internal/log"
	"finanze/internal/services"
)

const defaultSessionLimit = 20

type createSessionRequest struct {
	Title    string `json:"title"`
	Currency string `json:"currency"`
	Date     string `json:"date"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.sessions.CreateSession(r.Context(), userID(r), services.CreateSessionInput{
		Title:    req.Title,
		Currency: req.Currency,
		Date:     date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	sessions, err := s.sessions.ListSessions(r.Context(), userID(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetSession(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type addItemRequest struct {
	Merchant   string `json:"merchant"`
	Amount     string `json:"amount"`
	CategoryID string `json:"categoryId"`
	Note       string `json:"note"`
	Date       string `json:"date"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.sessions.AddItem(r.Context(), userID(r), r.PathValue("id"), services.AddItemInput{
		Merchant:   req.Merchant,
		Amount:     amount,
		CategoryID: req.CategoryID,
		Note:       req.Note,
		Date:       date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.sessions.ListItems(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DeleteItem(r.Context(), userID(r), r.PathValue("id"), r.PathValue("itemID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type saveSummaryRequest struct {
	Close bool `json:"close"`
}

func (s *Server) handleSaveSummary(w http.ResponseWriter, r *http.Request) {
	var req saveSummaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sum, err := s.sessions.ComputeAndSaveSummary(r.Context(), userID(r), r.PathValue("id"), req.Close)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleConvertSession turns a session's items into transactions. Repeated
// calls return 200 with alreadyConverted=true and change nothing.
func (s *Server) handleConvertSession(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	res, err := s.sessions.ConvertToTransactions(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !res.AlreadyConverted {
		sessionsConverted.Inc()
		s.invalidateInsights(uid)
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Session converted via API",
			applog.FieldUserID, uid,
			applog.FieldSessionID, r.PathValue("id"),
			applog.FieldTxCount, res.Created)
	}
	writeJSON(w, http.StatusOK, res)
}
