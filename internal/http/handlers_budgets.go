package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/log"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.Budgets(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	start := req.StartDate
	if start.IsEmpty() {
		start = core.DateOf(s.now())
	}

	created, err := s.svc.CreateBudget(r.Context(), core.Budget{
		Category:  cat,
		Limit:     req.Limit,
		Period:    core.Period(req.Period),
		StartDate: start,
		EndDate:   req.EndDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget created",
		log.FieldOperation, log.OpCreate, log.FieldBudgetID, created.ID, log.FieldCategory, created.Category)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteBudget(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.BudgetReport(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if report == nil {
		report = []engine.Usage{}
	}
	writeJSON(w, http.StatusOK, report)
}
