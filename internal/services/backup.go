package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/log"
)

// Backup is the export/import document. On import a nil collection means the
// key was absent and the stored collection is left unchanged.
type Backup struct {
	Transactions []core.Transaction `json:"transactions"`
	Budgets      []core.Budget      `json:"budgets"`
	Goals        []core.Goal        `json:"goals"`
	ExportDate   time.Time          `json:"exportDate"`
}

// ImportResult counts the records written per collection.
type ImportResult struct {
	Transactions int `json:"transactions"`
	Budgets      int `json:"budgets"`
	Goals        int `json:"goals"`
}

// DecodeBackup parses a backup document, keeping absent keys nil and present
// (possibly empty) arrays non-nil.
func DecodeBackup(data []byte) (Backup, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Backup{}, fmt.Errorf("%w: malformed backup: %v", core.ErrInvalidInput, err)
	}

	var b Backup
	if err := decodeCollection(raw, "transactions", &b.Transactions); err != nil {
		return Backup{}, err
	}
	if err := decodeCollection(raw, "budgets", &b.Budgets); err != nil {
		return Backup{}, err
	}
	if err := decodeCollection(raw, "goals", &b.Goals); err != nil {
		return Backup{}, err
	}
	if v, ok := raw["exportDate"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &b.ExportDate); err != nil {
			return Backup{}, fmt.Errorf("%w: malformed exportDate: %v", core.ErrInvalidInput, err)
		}
	}
	return b, nil
}

func decodeCollection[T any](raw map[string]json.RawMessage, key string, dst *[]T) error {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return nil
	}
	items := []T{}
	if err := json.Unmarshal(v, &items); err != nil {
		return fmt.Errorf("%w: malformed %s: %v", core.ErrInvalidInput, key, err)
	}
	*dst = items
	return nil
}

// Export returns every collection stamped with the export time.
func (s *FinanceService) Export(ctx context.Context) (Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, budgets, err := s.loadBudgetState(ctx)
	if err != nil {
		return Backup{}, err
	}
	goals, err := s.records.Goals(ctx)
	if err != nil {
		return Backup{}, err
	}

	s.logger.InfoContext(ctx, "Data exported",
		log.FieldCount, len(txs)+len(budgets)+len(goals),
		log.FieldOperation, log.OpExport)
	return Backup{
		Transactions: txs,
		Budgets:      engine.RefreshBudgetSpend(budgets, txs),
		Goals:        goals,
		ExportDate:   s.now().UTC(),
	}, nil
}

// Import replaces the collections present in b. Every record is validated
// before anything is written; records without an ID get one. Goal completion
// and budget spend are recomputed from the resulting data.
func (s *FinanceService) Import(ctx context.Context, b Backup) (ImportResult, error) {
	for i := range b.Transactions {
		if err := b.Transactions[i].Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		if b.Transactions[i].ID == "" {
			b.Transactions[i].ID = s.newID()
		}
	}
	for i := range b.Budgets {
		if err := b.Budgets[i].Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("budget %d: %w", i, err)
		}
		if b.Budgets[i].ID == "" {
			b.Budgets[i].ID = s.newID()
		}
	}
	for i := range b.Goals {
		if err := b.Goals[i].Validate(); err != nil {
			return ImportResult{}, fmt.Errorf("goal %d: %w", i, err)
		}
		if b.Goals[i].ID == "" {
			b.Goals[i].ID = s.newID()
		}
		b.Goals[i].SyncCompleted()
	}

	var res ImportResult
	err := s.locked(func() error {
		txs, budgets, err := s.loadBudgetState(ctx)
		if err != nil {
			return err
		}
		if b.Transactions != nil {
			txs = b.Transactions
			if err := s.records.SaveTransactions(ctx, txs); err != nil {
				return err
			}
			res.Transactions = len(txs)
		}
		if b.Budgets != nil {
			budgets = b.Budgets
			res.Budgets = len(budgets)
		}
		if err := s.records.SaveBudgets(ctx, engine.RefreshBudgetSpend(budgets, txs)); err != nil {
			return err
		}
		if b.Goals != nil {
			if err := s.records.SaveGoals(ctx, b.Goals); err != nil {
				return err
			}
			res.Goals = len(b.Goals)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	s.logger.InfoContext(ctx, "Data imported",
		"transactions", res.Transactions,
		"budgets", res.Budgets,
		"goals", res.Goals,
		log.FieldOperation, log.OpImport)
	s.publish(ctx, amqp.DataImported, "", "")
	return res, nil
}
