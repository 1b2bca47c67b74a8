package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/log"
)

type categorySpendResponse struct {
	Category core.Category   `json:"category"`
	Start    core.Date       `json:"start"`
	End      core.Date       `json:"end"`
	Total    decimal.Decimal `json:"total"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ref := core.DateOf(s.now())
	if v := r.URL.Query().Get("ref"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("ref: %w", err))
			return
		}
		ref = d
	}

	summary, err := s.getSummary(r.Context(), ref.Time)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCategorySpend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cat, err := core.ParseCategory(q.Get("category"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	start, err := optionalDate(q, "start")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	end, err := optionalDate(q, "end")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if start.IsEmpty() || end.IsEmpty() {
		writeServiceError(w, r, fmt.Errorf("%w: start and end are required", core.ErrInvalidInput))
		return
	}

	total, err := s.svc.CategorySpend(r.Context(), cat, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categorySpendResponse{Category: cat, Start: start, End: end, Total: total})
}

func summaryKey(ref time.Time, rev int64) string {
	return fmt.Sprintf("%s@%d", ref.Format("2006-01"), rev)
}

// getSummary serves the month summary from cache. Entries are keyed on the
// store revision, so a write from any process sharing the store makes them
// unreachable. Concurrent misses for the same key share one computation.
func (s *Server) getSummary(ctx context.Context, ref time.Time) (core.FinancialSummary, error) {
	rev, ok, err := s.svc.Revision(ctx)
	if err != nil {
		return core.FinancialSummary{}, err
	}
	if !ok {
		return s.svc.Summary(ctx, ref)
	}

	key := summaryKey(ref, rev)
	if summary, ok := s.summaryCache.Get(key); ok {
		log.FromContext(ctx).DebugContext(ctx, "Summary cache hit", "key", key)
		return summary, nil
	}

	gen := s.summaryGeneration()
	v, err, _ := s.summaryGroup.Do(key, func() (any, error) {
		summary, err := s.svc.Summary(ctx, ref)
		if err != nil {
			return core.FinancialSummary{}, fmt.Errorf("compute summary %s: %w", key, err)
		}
		s.storeSummary(gen, key, summary)
		return summary, nil
	})
	if err != nil {
		return core.FinancialSummary{}, err
	}
	return v.(core.FinancialSummary), nil
}

func (s *Server) summaryGeneration() uint64 {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	return s.summaryGen
}

// storeSummary caches a computed summary unless a purge happened since gen
// was read; the computation may then have seen pre-mutation data.
func (s *Server) storeSummary(gen uint64, key string, summary core.FinancialSummary) {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	if gen != s.summaryGen {
		return
	}
	s.summaryCache.Set(key, summary)
}

// invalidateSummaries drops every cached summary after a local mutation.
func (s *Server) invalidateSummaries() {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	s.summaryGen++
	s.summaryCache.Purge()
}
