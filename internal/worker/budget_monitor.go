package worker

import (
	"context"
	"fmt"
	"sync"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/log"
)

// BudgetService is the part of the finance service the monitor drives.
type BudgetService interface {
	RefreshBudgets(ctx context.Context) ([]core.Budget, error)
	RolloverBudgets(ctx context.Context) (int, error)
}

// Alert is a budget whose usage crossed into warning or over.
type Alert struct {
	Usage    engine.Usage
	Previous engine.UsageStatus
}

// BudgetMonitor keeps budget projections fresh in response to finance events
// and logs when a budget's usage status gets worse.
type BudgetMonitor struct {
	svc    BudgetService
	logger *log.Logger

	mu       sync.Mutex
	statuses map[string]engine.UsageStatus
}

func NewBudgetMonitor(svc BudgetService, logger *log.Logger) *BudgetMonitor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetMonitor{
		svc:      svc,
		logger:   logger.WithComponent(log.ComponentWorker),
		statuses: make(map[string]engine.UsageStatus),
	}
}

// HandleEvent is an amqp.Handler. Events that cannot change budget spend are acked untouched.
func (m *BudgetMonitor) HandleEvent(ctx context.Context, event *amqp.FinanceEvent) error {
	if !event.Type.AffectsBudgets() {
		m.logger.DebugContext(ctx, "Event ignored", log.FieldEventType, event.Type)
		return nil
	}

	m.logger.InfoContext(ctx, "Processing finance event",
		log.FieldEventType, event.Type, "entity_id", event.EntityID, log.FieldCategory, event.Category)

	if _, err := m.Refresh(ctx); err != nil {
		return fmt.Errorf("handle %s: %w", event.Type, err)
	}
	return nil
}

// Refresh recomputes and persists budget spend, returning the alerts raised.
func (m *BudgetMonitor) Refresh(ctx context.Context) ([]Alert, error) {
	budgets, err := m.svc.RefreshBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh budgets: %w", err)
	}
	alerts := m.check(engine.BudgetReport(budgets))
	for _, a := range alerts {
		m.logAlert(ctx, a)
	}
	m.logger.DebugContext(ctx, "Budgets refreshed", log.FieldCount, len(budgets), "alerts", len(alerts))
	return alerts, nil
}

// Rollover moves expired budgets into the current period and refreshes them.
func (m *BudgetMonitor) Rollover(ctx context.Context) (int, error) {
	n, err := m.svc.RolloverBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("rollover budgets: %w", err)
	}
	if n > 0 {
		m.logger.InfoContext(ctx, "Budgets rolled over", log.FieldOperation, log.OpRollover, log.FieldCount, n)
		m.mu.Lock()
		clear(m.statuses)
		m.mu.Unlock()
	}
	return n, nil
}

// check records the latest status per budget and returns the budgets whose
// status moved up to warning or over. Deleted budgets are forgotten.
func (m *BudgetMonitor) check(report []engine.Usage) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(report))
	var alerts []Alert
	for _, u := range report {
		seen[u.BudgetID] = true
		prev, ok := m.statuses[u.BudgetID]
		if !ok {
			prev = engine.UsageOK
		}
		m.statuses[u.BudgetID] = u.Status
		if severity(u.Status) > severity(prev) {
			alerts = append(alerts, Alert{Usage: u, Previous: prev})
		}
	}
	for id := range m.statuses {
		if !seen[id] {
			delete(m.statuses, id)
		}
	}
	return alerts
}

func severity(s engine.UsageStatus) int {
	switch s {
	case engine.UsageOver:
		return 2
	case engine.UsageWarning:
		return 1
	}
	return 0
}

func (m *BudgetMonitor) logAlert(ctx context.Context, a Alert) {
	args := []any{
		log.FieldBudgetID, a.Usage.BudgetID,
		log.FieldCategory, a.Usage.Category,
		log.FieldPercentage, a.Usage.Percentage.StringFixed(1),
		"spent", core.FormatReais(a.Usage.Spent),
		"limit", core.FormatReais(a.Usage.Limit),
	}
	if a.Usage.Status == engine.UsageOver {
		m.logger.WarnContext(ctx, "Budget limit exceeded", args...)
		return
	}
	m.logger.InfoContext(ctx, "Budget nearing limit", args...)
}
