package engine

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
)

// UsageStatus classifies how much of a budget has been consumed.
type UsageStatus string

const (
	UsageOK      UsageStatus = "ok"
	UsageWarning UsageStatus = "warning"
	UsageOver    UsageStatus = "over"
)

var (
	warningThreshold = decimal.NewFromInt(80)
	overThreshold    = decimal.NewFromInt(100)
	hundred          = decimal.NewFromInt(100)
)

// Usage is a budget's consumption relative to its limit.
type Usage struct {
	BudgetID   string          `json:"budgetId"`
	Category   core.Category   `json:"category"`
	Spent      decimal.Decimal `json:"spent"`
	Limit      decimal.Decimal `json:"limit"`
	Percentage decimal.Decimal `json:"percentage"`
	Status     UsageStatus     `json:"status"`
}

// BudgetUsage reports the consumed percentage of b (one decimal place).
// Above 80% is a warning and above 100% is over the limit.
func BudgetUsage(b core.Budget) Usage {
	u := Usage{
		BudgetID:   b.ID,
		Category:   b.Category,
		Spent:      b.CurrentSpent,
		Limit:      b.Limit,
		Percentage: decimal.Zero,
		Status:     UsageOK,
	}
	if !b.Limit.IsPositive() {
		return u
	}
	u.Percentage = b.CurrentSpent.Div(b.Limit).Mul(hundred).Round(1)
	switch {
	case u.Percentage.GreaterThan(overThreshold):
		u.Status = UsageOver
	case u.Percentage.GreaterThan(warningThreshold):
		u.Status = UsageWarning
	}
	return u
}

// BudgetReport returns the usage of every budget in order.
func BudgetReport(budgets []core.Budget) []Usage {
	out := make([]Usage, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, BudgetUsage(b))
	}
	return out
}

// Progress describes how far a goal is from its target.
type Progress struct {
	GoalID     string          `json:"goalId"`
	Percentage decimal.Decimal `json:"percentage"` // capped at 100
	DaysLeft   int             `json:"daysLeft"`
	Expired    bool            `json:"expired"`
	Completed  bool            `json:"completed"`
}

// GoalProgress computes progress of g as of now.
func GoalProgress(g core.Goal, now time.Time) Progress {
	p := Progress{GoalID: g.ID, Percentage: decimal.Zero, Completed: g.Completed}
	if g.TargetAmount.IsPositive() {
		p.Percentage = decimal.Min(g.CurrentAmount.Div(g.TargetAmount).Mul(hundred), hundred).Round(1)
	}
	if !g.Deadline.IsEmpty() {
		p.DaysLeft = int(math.Ceil(g.Deadline.Sub(now).Hours() / 24))
		p.Expired = p.DaysLeft < 0
	}
	return p
}
