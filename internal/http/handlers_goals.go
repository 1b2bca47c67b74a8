package http

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/log"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.svc.Goals(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	created, err := s.svc.CreateGoal(r.Context(), core.Goal{
		Title:        sanitizeInput(req.Title),
		TargetAmount: req.TargetAmount,
		Deadline:     req.Deadline,
		Category:     cat,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.svc.GoalProgress(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if progress == nil {
		progress = []engine.Progress{}
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req contributionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeServiceError(w, r, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount))
		return
	}

	goal, err := s.svc.ContributeToGoal(r.Context(), id, req.Amount.Decimal)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Goal contribution recorded",
		log.FieldOperation, log.OpContribute, log.FieldGoalID, id, log.FieldAmount, req.Amount.StringFixed(2))
	writeJSON(w, http.StatusOK, goal)
}
