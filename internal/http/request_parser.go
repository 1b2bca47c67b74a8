package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"financas/internal/core"
)

// parseFilters reads start, end, category (comma separated) and type query parameters.
func parseFilters(q url.Values) (core.Filters, error) {
	var f core.Filters
	var err error

	if f.Start, err = optionalDate(q, "start"); err != nil {
		return f, err
	}
	if f.End, err = optionalDate(q, "end"); err != nil {
		return f, err
	}
	for _, part := range strings.Split(q.Get("category"), ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := core.ParseCategory(part)
		if err != nil {
			return f, err
		}
		f.Categories = append(f.Categories, c)
	}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		if f.Type, err = core.ParseTransactionType(v); err != nil {
			return f, err
		}
	}
	return f, nil
}

func optionalDate(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// parseLimit returns the positive limit query parameter, or 0 when absent.
func parseLimit(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", core.ErrInvalidInput)
	}
	return n, nil
}

// amount accepts a JSON number or a string using either decimal
// separator ("12.34", "12,34"). Negative strings are rejected.
type amount struct{ decimal.Decimal }

func (a *amount) UnmarshalJSON(b []byte) (err error) {
	a.Decimal, err = decodeAmount(b, core.ParseAmount)
	return err
}

// signedAmount is amount allowing a leading minus, for withdrawals.
type signedAmount struct{ decimal.Decimal }

func (a *signedAmount) UnmarshalJSON(b []byte) (err error) {
	a.Decimal, err = decodeAmount(b, core.ParseSignedAmount)
	return err
}

func decodeAmount(b []byte, parse func(string) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero, core.ErrInvalidAmount
		}
		return parse(s)
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrInvalidAmount, b)
	}
	return d, nil
}

type transactionRequest struct {
	Amount      *amount   `json:"amount"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Date        core.Date `json:"date"`
}

// toTransaction converts the request; an empty date means today.
func (req transactionRequest) toTransaction(today core.Date) (core.Transaction, error) {
	if req.Amount == nil {
		return core.Transaction{}, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	cat, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.Transaction{}, err
	}
	d := req.Date
	if d.IsEmpty() {
		d = today
	}
	return core.Transaction{
		Amount:      req.Amount.Decimal,
		Description: sanitizeInput(req.Description),
		Type:        typ,
		Category:    cat,
		Date:        d,
	}, nil
}

type transactionPatch struct {
	Amount      *amount    `json:"amount"`
	Description *string    `json:"description"`
	Type        *string    `json:"type"`
	Category    *string    `json:"category"`
	Date        *core.Date `json:"date"`
}

func (p transactionPatch) toUpdate() (core.TransactionUpdate, error) {
	u := core.TransactionUpdate{Date: p.Date}
	if p.Amount != nil {
		u.Amount = &p.Amount.Decimal
	}
	if p.Description != nil {
		d := sanitizeInput(*p.Description)
		u.Description = &d
	}
	if p.Type != nil {
		t, err := core.ParseTransactionType(*p.Type)
		if err != nil {
			return u, err
		}
		u.Type = &t
	}
	if p.Category != nil {
		c, err := core.ParseCategory(*p.Category)
		if err != nil {
			return u, err
		}
		u.Category = &c
	}
	return u, nil
}

type budgetRequest struct {
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	Period    string          `json:"period"`
	StartDate core.Date       `json:"startDate"`
	EndDate   core.Date       `json:"endDate"`
}

type goalRequest struct {
	Title        string          `json:"title"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Deadline     core.Date       `json:"deadline"`
	Category     string          `json:"category"`
}

type contributionRequest struct {
	Amount *signedAmount `json:"amount"`
}
