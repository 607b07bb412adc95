package http

import (
	"net/http"

	"finanze/internal/core"
	"finanze/internal/services"
)

type createTransactionRequest struct {
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	CategoryID string `json:"categoryId"`
	Note       string `json:"note"`
	Date       string `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
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

	uid := userID(r)
	tx, err := s.transactions.Create(r.Context(), uid, services.CreateTransactionInput{
		Type:       core.TxType(req.Type),
		Amount:     amount,
		CategoryID: req.CategoryID,
		Note:       req.Note,
		Date:       date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateInsights(uid)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.ListForMonth(r.Context(), userID(r), r.PathValue("monthKey"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// updateTransactionRequest carries a partial update; absent fields are left
// untouched.
type updateTransactionRequest struct {
	Type       *string `json:"type"`
	Amount     *string `json:"amount"`
	CategoryID *string `json:"categoryId"`
	Note       *string `json:"note"`
	Date       *string `json:"date"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var patch core.TransactionPatch
	if req.Type != nil {
		t := core.TxType(*req.Type)
		patch.Type = &t
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Amount = &amount
	}
	patch.CategoryID = req.CategoryID
	patch.Note = req.Note
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Date = &date
	}

	uid := userID(r)
	if err := s.transactions.Update(r.Context(), uid, r.PathValue("id"), patch); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateInsights(uid)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if err := s.transactions.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateInsights(uid)
	writeJSON(w, http.StatusNoContent, nil)
}
