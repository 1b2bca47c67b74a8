// Package seed generates plausible demo data for local development.
package seed

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/services"
)

type Options struct {
	// Seed makes generation reproducible; 0 picks a random seed.
	Seed int64
	// Months of history ending with Ref's month.
	Months int
	// ExpensesPerMonth is the number of expense transactions per month.
	ExpensesPerMonth int
	Ref              time.Time
}

func DefaultOptions() Options {
	return Options{Months: 6, ExpensesPerMonth: 20, Ref: time.Now()}
}

var expenseCategories = []core.Category{
	"food", "transport", "housing", "entertainment", "health", "education", "other",
}

var expenseRange = map[core.Category][2]float64{
	"food":          {15, 250},
	"transport":     {5, 120},
	"housing":       {80, 1800},
	"entertainment": {20, 300},
	"health":        {30, 400},
	"education":     {50, 600},
	"other":         {5, 200},
}

// Generate builds a backup with a monthly salary, random expenses, one
// monthly budget per expense category and a few goals.
func Generate(opts Options) services.Backup {
	if opts.Months < 1 {
		opts.Months = 1
	}
	if opts.ExpensesPerMonth < 0 {
		opts.ExpensesPerMonth = 0
	}
	if opts.Ref.IsZero() {
		opts.Ref = time.Now()
	}
	f := gofakeit.New(opts.Seed)

	current := engine.MonthWindow(opts.Ref)
	var txs []core.Transaction
	for i := opts.Months - 1; i >= 0; i-- {
		w := engine.MonthWindow(current.Start.AddMonths(-i).Time)
		txs = append(txs, core.Transaction{
			ID:          uuid.NewString(),
			Amount:      decimal.NewFromFloat(f.Price(4500, 9000)).Round(2),
			Description: fmt.Sprintf("Salário %s", f.Company()),
			Type:        core.Income,
			Category:    "salary",
			Date:        w.Start.AddDays(4),
			CreatedAt:   w.Start.Time,
		})
		if f.Bool() {
			txs = append(txs, core.Transaction{
				ID:          uuid.NewString(),
				Amount:      decimal.NewFromFloat(f.Price(50, 800)).Round(2),
				Description: "Rendimento " + f.Word(),
				Type:        core.Income,
				Category:    "investment",
				Date:        randomDay(f, w),
				CreatedAt:   w.Start.Time,
			})
		}
		for j := 0; j < opts.ExpensesPerMonth; j++ {
			cat := expenseCategories[f.Number(0, len(expenseCategories)-1)]
			r := expenseRange[cat]
			txs = append(txs, core.Transaction{
				ID:          uuid.NewString(),
				Amount:      decimal.NewFromFloat(f.Price(r[0], r[1])).Round(2),
				Description: f.Sentence(3),
				Type:        core.Expense,
				Category:    cat,
				Date:        randomDay(f, w),
				CreatedAt:   w.Start.Time,
			})
		}
	}

	budgets := make([]core.Budget, 0, len(expenseCategories))
	for _, cat := range expenseCategories {
		r := expenseRange[cat]
		limit := decimal.NewFromFloat(r[1] * float64(opts.ExpensesPerMonth) / float64(len(expenseCategories))).Round(0)
		if !limit.IsPositive() {
			limit = decimal.NewFromFloat(r[1]).Round(0)
		}
		budgets = append(budgets, core.Budget{
			ID:        uuid.NewString(),
			Category:  cat,
			Limit:     limit,
			Period:    core.Monthly,
			StartDate: current.Start,
			EndDate:   current.End,
		})
	}

	goalTitles := []string{"Reserva de emergência", "Viagem de férias", "Curso de idiomas"}
	goalCategories := []core.Category{"investment", "entertainment", "education"}
	goals := make([]core.Goal, 0, len(goalTitles))
	for i, title := range goalTitles {
		g := core.Goal{
			ID:            uuid.NewString(),
			Title:         title,
			TargetAmount:  decimal.NewFromInt(int64(f.Number(10, 100) * 100)),
			CurrentAmount: decimal.NewFromInt(int64(f.Number(0, 50) * 100)),
			Deadline:      current.Start.AddMonths(f.Number(3, 18)),
			Category:      goalCategories[i],
		}
		g.SyncCompleted()
		goals = append(goals, g)
	}

	return services.Backup{
		Transactions: txs,
		Budgets:      budgets,
		Goals:        goals,
		ExportDate:   opts.Ref.UTC(),
	}
}

func randomDay(f *gofakeit.Faker, w engine.Window) core.Date {
	days := int(w.End.Sub(w.Start.Time).Hours()/24) + 1
	return w.Start.AddDays(f.Number(0, days-1))
}
