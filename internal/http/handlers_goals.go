package http

import (
	"net/http"
	"time"

	"finanze/internal/core"
	"finanze/internal/services"
)

type createGoalRequest struct {
	Name         string `json:"name"`
	TargetAmount string `json:"targetAmount"`
	Deadline     string `json:"deadline"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := parseDate(req.Deadline)
		if err != nil {
			writeError(w, r, err)
			return
		}
		deadline = &d
	}

	g, err := s.goals.Create(r.Context(), userID(r), services.CreateGoalInput{
		Name:         req.Name,
		TargetAmount: target,
		Deadline:     deadline,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

// updateGoalRequest carries a partial update. Setting clearDeadline removes
// the deadline and wins over any deadline in the same request.
type updateGoalRequest struct {
	Name          *string `json:"name"`
	TargetAmount  *string `json:"targetAmount"`
	Deadline      *string `json:"deadline"`
	ClearDeadline bool    `json:"clearDeadline"`
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := core.GoalPatch{
		Name:          req.Name,
		ClearDeadline: req.ClearDeadline,
	}
	if req.TargetAmount != nil {
		target, err := parseAmount(*req.TargetAmount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.TargetAmount = &target
	}
	if req.Deadline != nil {
		d, err := parseDate(*req.Deadline)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Deadline = &d
	}

	if err := s.goals.Update(r.Context(), userID(r), r.PathValue("id"), patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type depositRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.goals.Deposit(r.Context(), userID(r), r.PathValue("id"), amount); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
