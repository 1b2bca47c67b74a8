// Package engine computes financial views over in-memory collections.
//
// Every function here is pure: it reads the slices it is given, never touches
// storage and never reads the clock. Callers pass the reference date explicitly.
package engine

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
)

// TrendMonths is the number of months in the summary trend, current month included.
const TrendMonths = 6

type options struct {
	locale Locale
}

// Option configures ComputeSummary.
type Option func(*options)

// WithLocale sets the locale used for trend labels (default pt-BR).
func WithLocale(l Locale) Option {
	return func(o *options) {
		if l.IsValid() {
			o.locale = l
		}
	}
}

// ComputeSummary aggregates the month containing ref and the trend of the
// TrendMonths months ending there.
func ComputeSummary(transactions []core.Transaction, ref time.Time, opts ...Option) core.FinancialSummary {
	o := options{locale: LocalePtBR}
	for _, opt := range opts {
		opt(&o)
	}

	month := MonthWindow(ref)
	income, expenses := totals(transactions, month)

	byCategory := make(map[core.Category]decimal.Decimal)
	for _, t := range transactions {
		if t.Type != core.Expense || !month.Contains(t.Date) {
			continue
		}
		byCategory[t.Category] = byCategory[t.Category].Add(t.Amount)
	}
	for c, v := range byCategory {
		if v.IsZero() {
			delete(byCategory, c)
		}
	}

	return core.FinancialSummary{
		TotalIncome:        income,
		TotalExpenses:      expenses,
		Balance:            income.Sub(expenses),
		ExpensesByCategory: byCategory,
		MonthlyTrend:       monthlyTrend(transactions, month.Start, o.locale),
	}
}

func monthlyTrend(transactions []core.Transaction, firstOfMonth core.Date, l Locale) []core.MonthlyTrend {
	trend := make([]core.MonthlyTrend, 0, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		w := MonthWindow(firstOfMonth.AddMonths(-i).Time)
		income, expenses := totals(transactions, w)
		trend = append(trend, core.MonthlyTrend{
			Month:    MonthLabel(l, w.Start.Time),
			Income:   income,
			Expenses: expenses,
			Balance:  income.Sub(expenses),
		})
	}
	return trend
}

func totals(transactions []core.Transaction, w Window) (income, expenses decimal.Decimal) {
	for _, t := range transactions {
		if !w.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case core.Income:
			income = income.Add(t.Amount)
		case core.Expense:
			expenses = expenses.Add(t.Amount)
		}
	}
	return income, expenses
}

// ComputeCategorySpend sums expenses of category dated within [start, end].
func ComputeCategorySpend(transactions []core.Transaction, category core.Category, start, end core.Date) decimal.Decimal {
	w := Window{Start: start, End: end}
	total := decimal.Zero
	for _, t := range transactions {
		if t.Type == core.Expense && t.Category == category && w.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// FilterTransactions returns the matching transactions, most recent first.
// Transactions on the same date keep their input order.
func FilterTransactions(transactions []core.Transaction, f core.Filters) []core.Transaction {
	var out []core.Transaction
	if f.IsEmpty() {
		out = append(make([]core.Transaction, 0, len(transactions)), transactions...)
	} else {
		out = matching(transactions, f)
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out
}

func matching(transactions []core.Transaction, f core.Filters) []core.Transaction {
	w := Window{Start: f.Start, End: f.End}
	out := make([]core.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if !w.Contains(t.Date) {
			continue
		}
		if len(f.Categories) > 0 && !slices.Contains(f.Categories, t.Category) {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
	}
	return out
}

// RecentTransactions returns at most n transactions, most recent first.
func RecentTransactions(transactions []core.Transaction, n int) []core.Transaction {
	out := FilterTransactions(transactions, core.Filters{})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RefreshBudgetSpend returns a copy of budgets with CurrentSpent recomputed
// from each budget's own category and window.
func RefreshBudgetSpend(budgets []core.Budget, transactions []core.Transaction) []core.Budget {
	out := make([]core.Budget, len(budgets))
	for i, b := range budgets {
		b.CurrentSpent = ComputeCategorySpend(transactions, b.Category, b.StartDate, b.EndDate)
		out[i] = b
	}
	return out
}

// ContributeToGoal adds amount to the goal with the given id and recomputes
// its completion. It returns false when no goal has that id.
// Negative amounts are applied as-is.
func ContributeToGoal(goals []core.Goal, goalID string, amount decimal.Decimal) bool {
	for i := range goals {
		if goals[i].ID != goalID {
			continue
		}
		goals[i].CurrentAmount = goals[i].CurrentAmount.Add(amount)
		goals[i].SyncCompleted()
		return true
	}
	return false
}
