package amqp

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EventType names a finance domain event.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
	BudgetCreated      EventType = "budget.created"
	BudgetDeleted      EventType = "budget.deleted"
	GoalContributed    EventType = "goal.contributed"
	DataImported       EventType = "data.imported"
)

// AffectsBudgets reports whether consumers should refresh budget projections after e.
func (e EventType) AffectsBudgets() bool {
	switch e {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, BudgetCreated, DataImported:
		return true
	}
	return false
}

// FinanceEvent is a lightweight notification; consumers reload state from the record store.
type FinanceEvent struct {
	Type       EventType `json:"type"`
	EntityID   string    `json:"entity_id,omitempty"`
	Category   string    `json:"category,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewFinanceEvent(t EventType, entityID, category string) *FinanceEvent {
	return &FinanceEvent{
		Type:       t,
		EntityID:   entityID,
		Category:   category,
		OccurredAt: time.Now().UTC(),
	}
}

func (m *FinanceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FinanceEventFromJSON(data []byte) (*FinanceEvent, error) {
	var msg FinanceEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode finance event: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("decode finance event: missing type")
	}
	return &msg, nil
}
