package records

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"financas/internal/core"
)

// Records reads and writes typed collections through a RecordStore.
type Records struct {
	store RecordStore
}

func NewRecords(store RecordStore) *Records {
	return &Records{store: store}
}

func (r *Records) Transactions(ctx context.Context) ([]core.Transaction, error) {
	return load[core.Transaction](ctx, r.store, Transactions)
}

func (r *Records) SaveTransactions(ctx context.Context, items []core.Transaction) error {
	return save(ctx, r.store, Transactions, items)
}

func (r *Records) Budgets(ctx context.Context) ([]core.Budget, error) {
	return load[core.Budget](ctx, r.store, Budgets)
}

func (r *Records) SaveBudgets(ctx context.Context, items []core.Budget) error {
	return save(ctx, r.store, Budgets, items)
}

// Goals loads goals and recomputes Completed, which is never trusted from storage.
func (r *Records) Goals(ctx context.Context) ([]core.Goal, error) {
	goals, err := load[core.Goal](ctx, r.store, Goals)
	if err != nil {
		return nil, err
	}
	for i := range goals {
		goals[i].SyncCompleted()
	}
	return goals, nil
}

func (r *Records) SaveGoals(ctx context.Context, items []core.Goal) error {
	return save(ctx, r.store, Goals, items)
}

func (r *Records) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func load[T any](ctx context.Context, store RecordStore, c Collection) ([]T, error) {
	payload, err := store.Get(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c, err)
	}
	if len(payload) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func save[T any](ctx context.Context, store RecordStore, c Collection, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	if err := store.Set(ctx, c, payload); err != nil {
		return fmt.Errorf("set %s: %w", c, err)
	}
	return nil
}
