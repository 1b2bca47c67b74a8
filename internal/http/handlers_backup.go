package http

import (
	"fmt"
	"io"
	"net/http"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	backup, err := s.svc.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("financas-backup-%s.json", core.DateOf(s.now()))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, backup)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("%w: read body: %v", core.ErrInvalidInput, err))
		return
	}
	if len(body) > maxBodyBytes {
		writeServiceError(w, r, fmt.Errorf("%w: body too large", core.ErrInvalidInput))
		return
	}

	backup, err := services.DecodeBackup(body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := s.svc.Import(r.Context(), backup)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateSummaries()

	log.FromContext(r.Context()).InfoContext(r.Context(), "Backup imported",
		log.FieldOperation, log.OpImport,
		"transactions", result.Transactions, "budgets", result.Budgets, "goals", result.Goals)
	writeJSON(w, http.StatusOK, result)
}
