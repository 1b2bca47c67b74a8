package core

import "strings"

// Category is one of the fixed transaction categories.
type Category string

const (
	Food          Category = "food"
	Transport     Category = "transport"
	Housing       Category = "housing"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Education     Category = "education"
	Salary        Category = "salary"
	Investment    Category = "investment"
	Other         Category = "other"
)

var categories = []Category{
	Food, Transport, Housing, Entertainment, Health, Education, Salary, Investment, Other,
}

var categoryNames = map[Category]string{
	Food:          "Alimentação",
	Transport:     "Transporte",
	Housing:       "Moradia",
	Entertainment: "Entretenimento",
	Health:        "Saúde",
	Education:     "Educação",
	Salary:        "Salário",
	Investment:    "Investimentos",
	Other:         "Outros",
}

// Categories returns all categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) IsValid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the user-facing label, or the raw value for unknown categories.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory matches case-insensitively against the fixed set.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// ParseTransactionType matches case-insensitively against income/expense.
func ParseTransactionType(s string) (TransactionType, error) {
	switch {
	case strings.EqualFold(string(Income), strings.TrimSpace(s)):
		return Income, nil
	case strings.EqualFold(string(Expense), strings.TrimSpace(s)):
		return Expense, nil
	}
	return "", ErrInvalidType
}
