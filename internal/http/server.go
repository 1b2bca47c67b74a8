package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/log"
	"financas/internal/services"
)

// FinanceService is the subset of services.FinanceService the API needs.
type FinanceService interface {
	AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, u core.TransactionUpdate) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	Transactions(ctx context.Context, f core.Filters) ([]core.Transaction, error)
	RecentTransactions(ctx context.Context, n int) ([]core.Transaction, error)
	CategorySpend(ctx context.Context, c core.Category, start, end core.Date) (decimal.Decimal, error)
	Summary(ctx context.Context, ref time.Time) (core.FinancialSummary, error)

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
	Budgets(ctx context.Context) ([]core.Budget, error)
	BudgetReport(ctx context.Context) ([]engine.Usage, error)

	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	Goals(ctx context.Context) ([]core.Goal, error)
	GoalProgress(ctx context.Context) ([]engine.Progress, error)
	ContributeToGoal(ctx context.Context, id string, amount decimal.Decimal) (core.Goal, error)

	Export(ctx context.Context) (services.Backup, error)
	Import(ctx context.Context, b services.Backup) (services.ImportResult, error)

	Revision(ctx context.Context) (rev int64, ok bool, err error)
	Ping(ctx context.Context) error
}

var _ FinanceService = (*services.FinanceService)(nil)

type Options struct {
	RateLimitPerMinute int
	SummaryCacheTTL    time.Duration
	Logger             *log.Logger
	// Now defaults to time.Now; it picks the summary month when ref is omitted.
	Now func() time.Time
}

type Server struct {
	http.Server
	svc          FinanceService
	rateLimiter  *rateLimiter
	summaryCache *cache.LRUCache[core.FinancialSummary]
	cacheManager *cache.Manager
	summaryGroup singleflight.Group
	summaryMu    sync.Mutex
	summaryGen   uint64
	logger       *log.Logger
	metrics      securityMetrics
	now          func() time.Time
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc FinanceService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = 5 * time.Minute
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		svc:          svc,
		rateLimiter:  newRateLimiter(opts.RateLimitPerMinute),
		summaryCache: cache.NewLRUCache[core.FinancialSummary](100, opts.SummaryCacheTTL),
		cacheManager: cache.NewManager(logger.Logger),
		logger:       logger,
		now:          opts.Now,
	}
	go s.rateLimiter.startCleanup()
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(log.Middleware(logger), s.withSecurityHeaders)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/recent", s.handleRecentTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/category-spend", s.handleCategorySpend).Methods(http.MethodGet)

	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/report", s.handleBudgetReport).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id}", s.handleDeleteBudget).Methods(http.MethodDelete)

	api.HandleFunc("/goals", s.handleListGoals).Methods(http.MethodGet)
	api.HandleFunc("/goals", s.handleCreateGoal).Methods(http.MethodPost)
	api.HandleFunc("/goals/progress", s.handleGoalProgress).Methods(http.MethodGet)
	api.HandleFunc("/goals/{id}/contributions", s.handleContribute).Methods(http.MethodPost)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	s.cacheManager.Stop()
	return s.Server.Shutdown(ctx)
}

func isMutating(method string) bool {
	return method == http.MethodPost || method == http.MethodPatch ||
		method == http.MethodPut || method == http.MethodDelete
}

// withSecurityHeaders adds security headers, rate limiting and request logging.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
		}

		logger := log.FromContext(r.Context()).With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		if detectSuspiciousRequest(r, &s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		}

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, &s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			log.LogHTTPEnd(ctx, logger, r, http.StatusTooManyRequests, time.Since(start).Milliseconds(), clientIP)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		log.LogHTTPEnd(ctx, logger, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
