package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"financas/internal/core"
	"financas/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := parseFilters(q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit, err := parseLimit(q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	txs, err := s.svc.Transactions(r.Context(), filters)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// handleRecentTransactions returns the newest transactions, 10 unless limit is given.
func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if limit == 0 {
		limit = 10
	}

	txs, err := s.svc.RecentTransactions(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, err := req.toTransaction(core.DateOf(s.now()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	created, err := s.svc.AddTransaction(r.Context(), t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummaries()

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).
			WithTransaction(created.ID, created.Amount, string(created.Type), string(created.Category)).ToSlice()...)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch transactionPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := patch.toUpdate()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := s.svc.UpdateTransaction(r.Context(), id, u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummaries()
	w.WriteHeader(http.StatusNoContent)
}
