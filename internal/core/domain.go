package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Monthly Period = "monthly"
	Weekly  Period = "weekly"
)

type (
	TransactionType string

	Period string

	Transaction struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Type        TransactionType `json:"type"`
		Category    Category        `json:"category"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	// TransactionUpdate carries a partial update; nil fields are left untouched.
	TransactionUpdate struct {
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Description *string          `json:"description,omitempty"`
		Type        *TransactionType `json:"type,omitempty"`
		Category    *Category        `json:"category,omitempty"`
		Date        *Date            `json:"date,omitempty"`
	}

	Budget struct {
		ID           string          `json:"id"`
		Category     Category        `json:"category"`
		Limit        decimal.Decimal `json:"limit"`
		Period       Period          `json:"period"`
		CurrentSpent decimal.Decimal `json:"currentSpent"` // projection of transactions, see engine.RefreshBudgetSpend
		StartDate    Date            `json:"startDate"`
		EndDate      Date            `json:"endDate"`
	}

	Goal struct {
		ID            string          `json:"id"`
		Title         string          `json:"title"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		Deadline      Date            `json:"deadline"`
		Category      Category        `json:"category"`
		Completed     bool            `json:"completed"`
	}

	FinancialSummary struct {
		TotalIncome        decimal.Decimal              `json:"totalIncome"`
		TotalExpenses      decimal.Decimal              `json:"totalExpenses"`
		Balance            decimal.Decimal              `json:"balance"`
		ExpensesByCategory map[Category]decimal.Decimal `json:"expensesByCategory"`
		MonthlyTrend       []MonthlyTrend               `json:"monthlyTrend"`
	}

	MonthlyTrend struct {
		Month    string          `json:"month"`
		Income   decimal.Decimal `json:"income"`
		Expenses decimal.Decimal `json:"expenses"`
		Balance  decimal.Decimal `json:"balance"`
	}

	// Filters selects transactions. Zero values disable the corresponding filter.
	Filters struct {
		Start      Date
		End        Date
		Categories []Category
		Type       TransactionType
	}
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrInvalidType      = fmt.Errorf("%w: invalid transaction type", ErrInvalidInput)
	ErrInvalidCategory  = fmt.Errorf("%w: invalid category", ErrInvalidInput)
	ErrInvalidPeriod    = fmt.Errorf("%w: invalid budget period", ErrInvalidInput)
	ErrInvalidDate      = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrInvalidInput)
	ErrEmptyTitle       = fmt.Errorf("%w: empty title", ErrInvalidInput)
)

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (p Period) IsValid() bool {
	return p == Monthly || p == Weekly
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidInput)
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if !t.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}

// Apply returns a copy of t with the non-nil fields of u applied.
func (u TransactionUpdate) Apply(t Transaction) Transaction {
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Date != nil {
		t.Date = *u.Date
	}
	return t
}

func (b Budget) Validate() error {
	if !b.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.Period.IsValid() {
		return ErrInvalidPeriod
	}
	if err := b.StartDate.Validate(); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if !b.EndDate.IsEmpty() && b.EndDate.Before(b.StartDate.Time) {
		return fmt.Errorf("%w: end date must not be before start date", ErrInvalidInput)
	}
	return nil
}

func (g Goal) Validate() error {
	if len(strings.TrimSpace(g.Title)) == 0 {
		return ErrEmptyTitle
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := g.Deadline.Validate(); err != nil {
		return fmt.Errorf("invalid deadline: %w", err)
	}
	if !g.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}

// SyncCompleted recomputes Completed from the amounts.
func (g *Goal) SyncCompleted() {
	g.Completed = g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return f.Start.IsEmpty() && f.End.IsEmpty() && len(f.Categories) == 0 && f.Type == ""
}
