package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/log"
	"financas/internal/records"
)

// EventPublisher receives domain events after each persisted mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.FinanceEvent) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// FinanceService owns the transaction, budget and goal collections.
// Every operation loads the collections from the record store, so several
// processes sharing one store observe each other's writes.
type FinanceService struct {
	mu        sync.Mutex
	store     records.RecordStore
	records   *records.Records
	publisher EventPublisher
	logger    *log.Logger
	locale    engine.Locale
	now       func() time.Time
	newID     func() string
}

type Option func(*FinanceService)

// WithPublisher enables event publishing. A nil publisher disables it.
func WithPublisher(p EventPublisher) Option {
	return func(s *FinanceService) { s.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *FinanceService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentFinance)
		}
	}
}

func WithLocale(l engine.Locale) Option {
	return func(s *FinanceService) {
		if l.IsValid() {
			s.locale = l
		}
	}
}

// WithClock overrides time.Now, used for CreatedAt stamps and rollover.
func WithClock(now func() time.Time) Option {
	return func(s *FinanceService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *FinanceService) { s.newID = newID }
}

func NewFinanceService(store records.RecordStore, opts ...Option) *FinanceService {
	s := &FinanceService{
		store:   store,
		records: records.NewRecords(store),
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentFinance),
		locale:  engine.LocalePtBR,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revision returns the store's write counter. ok is false when the store does
// not track revisions, in which case callers must not cache derived data.
func (s *FinanceService) Revision(ctx context.Context) (rev int64, ok bool, err error) {
	r, ok := s.store.(records.Revisioner)
	if !ok {
		return 0, false, nil
	}
	rev, err = r.Revision(ctx)
	if err != nil {
		return 0, true, fmt.Errorf("read store revision: %w", err)
	}
	return rev, true, nil
}

// Ping checks the record store when it supports health checks.
func (s *FinanceService) Ping(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// AddTransaction validates t, assigns its ID and CreatedAt and persists it.
func (s *FinanceService) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Description = strings.TrimSpace(t.Description)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.ID = s.newID()
	t.CreatedAt = s.now().UTC()

	err := s.locked(func() error {
		txs, err := s.records.Transactions(ctx)
		if err != nil {
			return err
		}
		return s.saveTransactions(ctx, append(txs, t))
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction created", log.NewFields().
		WithTransaction(t.ID, t.Amount, string(t.Type), string(t.Category)).
		WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, amqp.TransactionCreated, t.ID, string(t.Category))
	return t, nil
}

// UpdateTransaction applies a partial update to the transaction with the given id.
func (s *FinanceService) UpdateTransaction(ctx context.Context, id string, u core.TransactionUpdate) (core.Transaction, error) {
	var updated core.Transaction
	err := s.locked(func() error {
		txs, err := s.records.Transactions(ctx)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(txs, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}

		updated = u.Apply(txs[i])
		updated.Description = strings.TrimSpace(updated.Description)
		if err := updated.Validate(); err != nil {
			return err
		}
		txs[i] = updated
		return s.saveTransactions(ctx, txs)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction updated", log.NewFields().
		WithTransaction(updated.ID, updated.Amount, string(updated.Type), string(updated.Category)).
		WithOperation(log.OpUpdate).ToSlice()...)
	s.publish(ctx, amqp.TransactionUpdated, updated.ID, string(updated.Category))
	return updated, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id string) error {
	var removed core.Transaction
	err := s.locked(func() error {
		txs, err := s.records.Transactions(ctx)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(txs, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}
		removed = txs[i]
		return s.saveTransactions(ctx, slices.Delete(txs, i, i+1))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTransactionID, id, log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.TransactionDeleted, id, string(removed.Category))
	return nil
}

// Transactions returns the transactions matching f, most recent first.
func (s *FinanceService) Transactions(ctx context.Context, f core.Filters) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.records.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	return engine.FilterTransactions(txs, f), nil
}

func (s *FinanceService) RecentTransactions(ctx context.Context, n int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.records.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	return engine.RecentTransactions(txs, n), nil
}

func (s *FinanceService) CategorySpend(ctx context.Context, c core.Category, start, end core.Date) (decimal.Decimal, error) {
	if !c.IsValid() {
		return decimal.Zero, core.ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.records.Transactions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return engine.ComputeCategorySpend(txs, c, start, end), nil
}

// Summary computes the financial summary of the month containing ref.
func (s *FinanceService) Summary(ctx context.Context, ref time.Time) (core.FinancialSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.records.Transactions(ctx)
	if err != nil {
		return core.FinancialSummary{}, err
	}
	return engine.ComputeSummary(txs, ref, engine.WithLocale(s.locale)), nil
}

// CreateBudget persists b with its spend computed. A missing EndDate is
// derived from the period: one month or one week from StartDate, inclusive.
func (s *FinanceService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.EndDate.IsEmpty() && !b.StartDate.IsEmpty() {
		b.EndDate = defaultBudgetEnd(b.Period, b.StartDate)
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	b.ID = s.newID()

	var created core.Budget
	err := s.locked(func() error {
		txs, budgets, err := s.loadBudgetState(ctx)
		if err != nil {
			return err
		}
		budgets = engine.RefreshBudgetSpend(append(budgets, b), txs)
		if err := s.records.SaveBudgets(ctx, budgets); err != nil {
			return err
		}
		created = budgets[len(budgets)-1]
		return nil
	})
	if err != nil {
		return core.Budget{}, err
	}

	s.logger.InfoContext(ctx, "Budget created",
		log.FieldBudgetID, created.ID,
		log.FieldCategory, created.Category,
		log.FieldAmount, created.Limit.StringFixed(2),
		log.FieldOperation, log.OpCreate)
	s.publish(ctx, amqp.BudgetCreated, created.ID, string(created.Category))
	return created, nil
}

func defaultBudgetEnd(p core.Period, start core.Date) core.Date {
	if p == core.Weekly {
		return start.AddDays(6)
	}
	return start.AddMonths(1).AddDays(-1)
}

func (s *FinanceService) DeleteBudget(ctx context.Context, id string) error {
	var removed core.Budget
	err := s.locked(func() error {
		budgets, err := s.records.Budgets(ctx)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(budgets, func(b core.Budget) bool { return b.ID == id })
		if i < 0 {
			return fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
		}
		removed = budgets[i]
		return s.records.SaveBudgets(ctx, slices.Delete(budgets, i, i+1))
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Budget deleted", log.FieldBudgetID, id, log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.BudgetDeleted, id, string(removed.Category))
	return nil
}

// Budgets returns every budget with its spend recomputed from the current transactions.
func (s *FinanceService) Budgets(ctx context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, budgets, err := s.loadBudgetState(ctx)
	if err != nil {
		return nil, err
	}
	return engine.RefreshBudgetSpend(budgets, txs), nil
}

// RefreshBudgets recomputes and persists every budget's spend.
func (s *FinanceService) RefreshBudgets(ctx context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, budgets, err := s.loadBudgetState(ctx)
	if err != nil {
		return nil, err
	}
	budgets = engine.RefreshBudgetSpend(budgets, txs)
	if err := s.records.SaveBudgets(ctx, budgets); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "Budgets refreshed", log.FieldCount, len(budgets), log.FieldOperation, log.OpRefresh)
	return budgets, nil
}

// BudgetReport returns the usage of every budget.
func (s *FinanceService) BudgetReport(ctx context.Context) ([]engine.Usage, error) {
	budgets, err := s.Budgets(ctx)
	if err != nil {
		return nil, err
	}
	return engine.BudgetReport(budgets), nil
}

// RolloverBudgets moves every budget whose window ended before today to the
// period window containing today. It returns the number of budgets moved.
func (s *FinanceService) RolloverBudgets(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, budgets, err := s.loadBudgetState(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	today := core.DateOf(now)
	moved := 0
	for i, b := range budgets {
		if b.EndDate.IsEmpty() || !b.EndDate.Before(today.Time) {
			continue
		}
		w, err := engine.PeriodWindow(b.Period, now)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping budget with invalid period",
				log.FieldBudgetID, b.ID, log.FieldError, err)
			continue
		}
		budgets[i].StartDate, budgets[i].EndDate = w.Start, w.End
		moved++
	}
	if moved == 0 {
		return 0, nil
	}

	budgets = engine.RefreshBudgetSpend(budgets, txs)
	if err := s.records.SaveBudgets(ctx, budgets); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "Budgets rolled over", log.FieldCount, moved, log.FieldOperation, log.OpRollover)
	return moved, nil
}

// CreateGoal persists g starting from a zero balance.
func (s *FinanceService) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.Title = strings.TrimSpace(g.Title)
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.ID = s.newID()
	g.CurrentAmount = decimal.Zero
	g.SyncCompleted()

	s.mu.Lock()
	defer s.mu.Unlock()

	goals, err := s.records.Goals(ctx)
	if err != nil {
		return core.Goal{}, err
	}
	if err := s.records.SaveGoals(ctx, append(goals, g)); err != nil {
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, "Goal created",
		log.FieldGoalID, g.ID,
		log.FieldAmount, g.TargetAmount.StringFixed(2),
		log.FieldOperation, log.OpCreate)
	return g, nil
}

func (s *FinanceService) Goals(ctx context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Goals(ctx)
}

// GoalProgress reports progress for every goal as of the service clock.
func (s *FinanceService) GoalProgress(ctx context.Context) ([]engine.Progress, error) {
	goals, err := s.Goals(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]engine.Progress, 0, len(goals))
	for _, g := range goals {
		out = append(out, engine.GoalProgress(g, now))
	}
	return out, nil
}

// ContributeToGoal adds amount (which may be negative) to the goal's balance.
func (s *FinanceService) ContributeToGoal(ctx context.Context, id string, amount decimal.Decimal) (core.Goal, error) {
	var g core.Goal
	err := s.locked(func() error {
		goals, err := s.records.Goals(ctx)
		if err != nil {
			return err
		}
		if !engine.ContributeToGoal(goals, id, amount) {
			return fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
		}
		if err := s.records.SaveGoals(ctx, goals); err != nil {
			return err
		}
		g = goals[slices.IndexFunc(goals, func(g core.Goal) bool { return g.ID == id })]
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}

	s.logger.InfoContext(ctx, "Goal contribution recorded",
		log.FieldGoalID, id,
		log.FieldAmount, amount.StringFixed(2),
		"completed", g.Completed,
		log.FieldOperation, log.OpContribute)
	s.publish(ctx, amqp.GoalContributed, id, string(g.Category))
	return g, nil
}

// Clear removes every collection from the store.
func (s *FinanceService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.Clear(ctx); err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "All finance data cleared", log.FieldOperation, log.OpClear)
	return nil
}

// Close releases the store and publisher when they hold resources.
func (s *FinanceService) Close() error {
	var errs []error

	if c, ok := s.store.(records.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(records.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close finance service: %w", errors.Join(errs...))
	}
	return nil
}

func (s *FinanceService) loadBudgetState(ctx context.Context) ([]core.Transaction, []core.Budget, error) {
	txs, err := s.records.Transactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	budgets, err := s.records.Budgets(ctx)
	if err != nil {
		return nil, nil, err
	}
	return txs, budgets, nil
}

// saveTransactions persists txs and the budget projections derived from them.
func (s *FinanceService) saveTransactions(ctx context.Context, txs []core.Transaction) error {
	if err := s.records.SaveTransactions(ctx, txs); err != nil {
		return err
	}
	budgets, err := s.records.Budgets(ctx)
	if err != nil {
		return err
	}
	if len(budgets) == 0 {
		return nil
	}
	return s.records.SaveBudgets(ctx, engine.RefreshBudgetSpend(budgets, txs))
}

// locked runs fn holding the collections lock. Events are published after it
// returns so a slow broker never blocks other callers.
func (s *FinanceService) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *FinanceService) publish(ctx context.Context, t amqp.EventType, entityID, category string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewFinanceEvent(t, entityID, category)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish finance event",
			log.FieldEventType, t,
			log.FieldError, err,
			log.FieldOperation, log.OpPublish)
	}
}
