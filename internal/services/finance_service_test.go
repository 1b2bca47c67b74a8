package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/engine"
	"financas/internal/records"
	"financas/internal/records/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.FinanceEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *amqp.FinanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, now time.Time, opts ...Option) (*FinanceService, *memory.Store, *fakePublisher) {
	t.Helper()
	store := memory.New()
	pub := &fakePublisher{}
	n := 0
	base := []Option{
		WithPublisher(pub),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	}
	return NewFinanceService(store, append(base, opts...)...), store, pub
}

func addTx(t *testing.T, s *FinanceService, typ core.TransactionType, cat core.Category, amount string, d core.Date) core.Transaction {
	t.Helper()
	tx, err := s.AddTransaction(context.Background(), core.Transaction{
		Amount: dec(amount), Description: "test " + string(cat), Type: typ, Category: cat, Date: d,
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	return tx
}

func TestFinanceService_AddTransaction(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s, _, pub := newTestService(t, now)
	ctx := context.Background()

	tx, err := s.AddTransaction(ctx, core.Transaction{
		Amount: dec("200"), Description: "  mercado  ", Type: core.Expense,
		Category: core.Food, Date: core.NewDate(2024, 1, 10),
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if tx.ID != "id-1" || !tx.CreatedAt.Equal(now) || tx.Description != "mercado" {
		t.Errorf("unexpected transaction %+v", tx)
	}

	_, err = s.AddTransaction(ctx, core.Transaction{
		Amount: dec("-1"), Description: "x", Type: core.Expense, Category: core.Food, Date: core.NewDate(2024, 1, 1),
	})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected invalid input for negative amount, got %v", err)
	}

	txs, _ := s.Transactions(ctx, core.Filters{})
	if len(txs) != 1 {
		t.Fatalf("expected 1 stored transaction, got %d", len(txs))
	}
	if got := pub.types(); len(got) != 1 || got[0] != amqp.TransactionCreated {
		t.Errorf("unexpected events %v", got)
	}
}

func TestFinanceService_SummaryScenario(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	ctx := context.Background()
	addTx(t, s, core.Income, core.Salary, "1000", core.NewDate(2024, 1, 5))
	addTx(t, s, core.Expense, core.Food, "200", core.NewDate(2024, 1, 10))
	addTx(t, s, core.Expense, core.Transport, "100", core.NewDate(2024, 2, 1))

	sum, err := s.Summary(ctx, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.TotalIncome.Equal(dec("1000")) || !sum.TotalExpenses.Equal(dec("200")) || !sum.Balance.Equal(dec("800")) {
		t.Errorf("unexpected totals %+v", sum)
	}
	if len(sum.ExpensesByCategory) != 1 || !sum.ExpensesByCategory[core.Food].Equal(dec("200")) {
		t.Errorf("unexpected by-category %v", sum.ExpensesByCategory)
	}
	if len(sum.MonthlyTrend) != engine.TrendMonths {
		t.Errorf("expected %d trend entries, got %d", engine.TrendMonths, len(sum.MonthlyTrend))
	}
}

func TestFinanceService_BudgetProjectionFollowsTransactions(t *testing.T) {
	s, _, _ := newTestService(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	food := addTx(t, s, core.Expense, core.Food, "200", core.NewDate(2024, 1, 10))

	b, err := s.CreateBudget(ctx, core.Budget{
		Category: core.Food, Limit: dec("500"), Period: core.Monthly, StartDate: core.NewDate(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if !b.EndDate.Equal(core.NewDate(2024, 1, 31).Time) {
		t.Errorf("expected derived end 2024-01-31, got %s", b.EndDate)
	}
	if !b.CurrentSpent.Equal(dec("200")) {
		t.Errorf("expected spent 200, got %s", b.CurrentSpent)
	}

	report, err := s.BudgetReport(ctx)
	if err != nil || len(report) != 1 {
		t.Fatalf("BudgetReport: %v %v", report, err)
	}
	if !report[0].Percentage.Equal(dec("40")) || report[0].Status != engine.UsageOK {
		t.Errorf("unexpected usage %+v", report[0])
	}

	addTx(t, s, core.Expense, core.Food, "250", core.NewDate(2024, 1, 12))
	budgets, _ := s.Budgets(ctx)
	if !budgets[0].CurrentSpent.Equal(dec("450")) {
		t.Errorf("expected spent 450 after add, got %s", budgets[0].CurrentSpent)
	}

	amount := dec("50")
	if _, err := s.UpdateTransaction(ctx, food.ID, core.TransactionUpdate{Amount: &amount}); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	budgets, _ = s.Budgets(ctx)
	if !budgets[0].CurrentSpent.Equal(dec("300")) {
		t.Errorf("expected spent 300 after update, got %s", budgets[0].CurrentSpent)
	}

	if err := s.DeleteTransaction(ctx, food.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	budgets, _ = s.Budgets(ctx)
	if !budgets[0].CurrentSpent.Equal(dec("250")) {
		t.Errorf("expected spent 250 after delete, got %s", budgets[0].CurrentSpent)
	}

	if err := s.DeleteBudget(ctx, b.ID); err != nil {
		t.Fatalf("DeleteBudget: %v", err)
	}
	if err := s.DeleteBudget(ctx, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestFinanceService_WeeklyBudgetEnd(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	b, err := s.CreateBudget(context.Background(), core.Budget{
		Category: core.Transport, Limit: dec("100"), Period: core.Weekly, StartDate: core.NewDate(2024, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if !b.EndDate.Equal(core.NewDate(2024, 1, 7).Time) {
		t.Errorf("expected end 2024-01-07, got %s", b.EndDate)
	}
}

func TestFinanceService_NotFound(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	ctx := context.Background()

	if _, err := s.UpdateTransaction(ctx, "missing", core.TransactionUpdate{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.ContributeToGoal(ctx, "missing", dec("10")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("contribute: expected ErrNotFound, got %v", err)
	}
}

func TestFinanceService_UpdateRejectsInvalid(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	ctx := context.Background()
	tx := addTx(t, s, core.Expense, core.Food, "10", core.NewDate(2024, 1, 1))

	bad := core.Category("pets")
	if _, err := s.UpdateTransaction(ctx, tx.ID, core.TransactionUpdate{Category: &bad}); !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
	txs, _ := s.Transactions(ctx, core.Filters{})
	if txs[0].Category != core.Food {
		t.Error("rejected update must not be persisted")
	}
}

func TestFinanceService_Goals(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, _, pub := newTestService(t, now)
	ctx := context.Background()

	g, err := s.CreateGoal(ctx, core.Goal{
		Title: "Viagem", TargetAmount: dec("1000"), CurrentAmount: dec("999"),
		Deadline: core.NewDate(2024, 1, 11), Category: core.Other,
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if !g.CurrentAmount.IsZero() || g.Completed {
		t.Errorf("new goal should start at zero, got %+v", g)
	}

	if g, _ = s.ContributeToGoal(ctx, g.ID, dec("900")); g.Completed {
		t.Error("900 of 1000 should not be completed")
	}
	if g, _ = s.ContributeToGoal(ctx, g.ID, dec("100")); !g.Completed || !g.CurrentAmount.Equal(dec("1000")) {
		t.Errorf("expected completed at 1000, got %+v", g)
	}
	if g, _ = s.ContributeToGoal(ctx, g.ID, dec("50")); !g.Completed || !g.CurrentAmount.Equal(dec("1050")) {
		t.Errorf("expected completed at 1050, got %+v", g)
	}
	if g, _ = s.ContributeToGoal(ctx, g.ID, dec("-500")); g.Completed {
		t.Errorf("withdrawal below target should clear completion, got %+v", g)
	}

	progress, err := s.GoalProgress(ctx)
	if err != nil || len(progress) != 1 {
		t.Fatalf("GoalProgress: %v %v", progress, err)
	}
	if progress[0].DaysLeft != 10 || !progress[0].Percentage.Equal(dec("55")) {
		t.Errorf("unexpected progress %+v", progress[0])
	}

	if n := len(pub.types()); n != 4 {
		t.Errorf("expected 4 contribution events, got %d", n)
	}
}

func TestFinanceService_RolloverBudgets(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC) // Wednesday
	s, _, _ := newTestService(t, now)
	ctx := context.Background()

	addTx(t, s, core.Expense, core.Food, "30", core.NewDate(2024, 3, 2))
	addTx(t, s, core.Expense, core.Transport, "15", core.NewDate(2024, 3, 12))

	if _, err := s.CreateBudget(ctx, core.Budget{Category: core.Food, Limit: dec("100"), Period: core.Monthly, StartDate: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateBudget(ctx, core.Budget{Category: core.Transport, Limit: dec("50"), Period: core.Weekly, StartDate: core.NewDate(2024, 2, 5)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateBudget(ctx, core.Budget{Category: core.Health, Limit: dec("50"), Period: core.Monthly, StartDate: core.NewDate(2024, 3, 1)}); err != nil {
		t.Fatal(err)
	}

	moved, err := s.RolloverBudgets(ctx)
	if err != nil {
		t.Fatalf("RolloverBudgets: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 budgets moved, got %d", moved)
	}

	budgets, _ := s.Budgets(ctx)
	food, transport := budgets[0], budgets[1]
	if food.StartDate.String() != "2024-03-01" || food.EndDate.String() != "2024-03-31" || !food.CurrentSpent.Equal(dec("30")) {
		t.Errorf("unexpected monthly rollover %+v", food)
	}
	if transport.StartDate.String() != "2024-03-11" || transport.EndDate.String() != "2024-03-17" || !transport.CurrentSpent.Equal(dec("15")) {
		t.Errorf("unexpected weekly rollover %+v", transport)
	}

	if moved, _ := s.RolloverBudgets(ctx); moved != 0 {
		t.Errorf("second rollover should be a no-op, moved %d", moved)
	}
}

func TestFinanceService_ExportImport(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	src, _, _ := newTestService(t, now)
	ctx := context.Background()

	addTx(t, src, core.Expense, core.Food, "200", core.NewDate(2024, 1, 10))
	if _, err := src.CreateBudget(ctx, core.Budget{Category: core.Food, Limit: dec("500"), Period: core.Monthly, StartDate: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := src.CreateGoal(ctx, core.Goal{Title: "Reserva", TargetAmount: dec("100"), Deadline: core.NewDate(2024, 12, 31), Category: core.Investment}); err != nil {
		t.Fatal(err)
	}

	backup, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !backup.ExportDate.Equal(now) || len(backup.Transactions) != 1 || len(backup.Budgets) != 1 || len(backup.Goals) != 1 {
		t.Fatalf("unexpected backup %+v", backup)
	}

	dst, _, pub := newTestService(t, now)
	res, err := dst.Import(ctx, backup)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res != (ImportResult{Transactions: 1, Budgets: 1, Goals: 1}) {
		t.Errorf("unexpected result %+v", res)
	}
	budgets, _ := dst.Budgets(ctx)
	if !budgets[0].CurrentSpent.Equal(dec("200")) {
		t.Errorf("imported budget spend not recomputed: %s", budgets[0].CurrentSpent)
	}
	if got := pub.types(); len(got) != 1 || got[0] != amqp.DataImported {
		t.Errorf("unexpected events %v", got)
	}
}

func TestFinanceService_ImportSubsetKeepsOtherCollections(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	ctx := context.Background()
	addTx(t, s, core.Expense, core.Food, "10", core.NewDate(2024, 1, 1))

	b, err := DecodeBackup([]byte(`{"goals":[{"title":"Carro","targetAmount":100,"currentAmount":150,"deadline":"2025-01-01","category":"other","completed":false}]}`))
	if err != nil {
		t.Fatalf("DecodeBackup: %v", err)
	}
	if b.Transactions != nil || b.Budgets != nil {
		t.Fatal("absent keys must decode as nil")
	}
	if _, err := s.Import(ctx, b); err != nil {
		t.Fatalf("Import: %v", err)
	}

	txs, _ := s.Transactions(ctx, core.Filters{})
	if len(txs) != 1 {
		t.Errorf("transactions must be untouched, got %d", len(txs))
	}
	goals, _ := s.Goals(ctx)
	if len(goals) != 1 || !goals[0].Completed || goals[0].ID == "" {
		t.Errorf("expected completed goal with assigned id, got %+v", goals)
	}

	empty, err := DecodeBackup([]byte(`{"transactions":[]}`))
	if err != nil || empty.Transactions == nil {
		t.Fatalf("present empty array must decode non-nil: %+v %v", empty, err)
	}
	if _, err := s.Import(ctx, empty); err != nil {
		t.Fatal(err)
	}
	if txs, _ := s.Transactions(ctx, core.Filters{}); len(txs) != 0 {
		t.Errorf("explicit empty array should clear transactions, got %d", len(txs))
	}
}

func TestFinanceService_ImportRejectsInvalid(t *testing.T) {
	s, store, _ := newTestService(t, time.Now())
	ctx := context.Background()

	if _, err := DecodeBackup([]byte(`{broken`)); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected invalid input for malformed JSON, got %v", err)
	}

	b := Backup{Transactions: []core.Transaction{{Amount: dec("-5"), Description: "x", Type: core.Expense, Category: core.Food, Date: core.NewDate(2024, 1, 1)}}}
	if _, err := s.Import(ctx, b); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if raw, _ := store.Get(ctx, records.Transactions); raw != nil {
		t.Error("nothing should be written when validation fails")
	}
}

func TestFinanceService_PublishFailureDoesNotFailOperation(t *testing.T) {
	s, _, pub := newTestService(t, time.Now())
	pub.err = errors.New("broker down")

	if _, err := s.AddTransaction(context.Background(), core.Transaction{
		Amount: dec("1"), Description: "cafe", Type: core.Expense, Category: core.Food, Date: core.NewDate(2024, 1, 1),
	}); err != nil {
		t.Fatalf("publish failure must not fail the operation: %v", err)
	}
}

func TestFinanceService_Clear(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	ctx := context.Background()
	addTx(t, s, core.Income, core.Salary, "10", core.NewDate(2024, 1, 1))

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	txs, err := s.Transactions(ctx, core.Filters{})
	if err != nil || len(txs) != 0 {
		t.Errorf("expected empty after clear, got %v %v", txs, err)
	}
}

func TestFinanceService_Close(t *testing.T) {
	s := NewFinanceService(memory.New())
	if err := s.Close(); err != nil {
		t.Fatalf("Close should not fail for stores without resources: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping should succeed for stores without health checks: %v", err)
	}
}

func TestFinanceService_Concurrent(t *testing.T) {
	s, _, _ := newTestService(t, time.Now(), WithIDGenerator(func() string { return "" }))
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddTransaction(ctx, core.Transaction{
				Amount: dec("1"), Description: "x", Type: core.Expense, Category: core.Food, Date: core.NewDate(2024, 1, 1),
			})
		}()
	}
	wg.Wait()
	txs, _ := s.Transactions(ctx, core.Filters{})
	if len(txs) != 20 {
		t.Errorf("expected 20 transactions, got %d", len(txs))
	}
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, _ *amqp.FinanceEvent) error {
	close(p.entered)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestFinanceService_SlowPublishDoesNotBlockReads(t *testing.T) {
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewFinanceService(memory.New(), WithPublisher(pub))
	ctx := context.Background()

	added := make(chan error, 1)
	go func() {
		_, err := s.AddTransaction(ctx, core.Transaction{
			Amount: dec("10"), Description: "mercado", Type: core.Expense, Category: core.Food, Date: core.NewDate(2024, 3, 1),
		})
		added <- err
	}()
	<-pub.entered

	read := make(chan []core.Transaction, 1)
	go func() {
		txs, _ := s.Transactions(ctx, core.Filters{})
		read <- txs
	}()
	select {
	case txs := <-read:
		if len(txs) != 1 {
			t.Errorf("expected the persisted transaction to be visible, got %d", len(txs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read blocked while an event was being published")
	}

	close(pub.release)
	if err := <-added; err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
}

func TestDecodeBackup_ExportDate(t *testing.T) {
	b, err := DecodeBackup([]byte(`{"transactions":[],"exportDate":"2024-03-15T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC); !b.ExportDate.Equal(want) {
		t.Errorf("ExportDate = %v, want %v", b.ExportDate, want)
	}

	if _, err := DecodeBackup([]byte(`{"exportDate":null}`)); err != nil {
		t.Errorf("null exportDate should be accepted: %v", err)
	}
	if _, err := DecodeBackup([]byte(`{"transactions":[],"exportDate":"yesterday"}`)); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected invalid input for malformed exportDate, got %v", err)
	}
}

func TestFinanceService_Revision(t *testing.T) {
	s, _, _ := newTestService(t, time.Now())
	ctx := context.Background()

	before, ok, err := s.Revision(ctx)
	if err != nil || !ok {
		t.Fatalf("memory store should report revisions: ok=%v err=%v", ok, err)
	}
	addTx(t, s, core.Income, core.Salary, "100", core.NewDate(2024, 3, 1))
	after, _, _ := s.Revision(ctx)
	if after <= before {
		t.Errorf("revision should advance on write: before=%d after=%d", before, after)
	}

	plain := NewFinanceService(storeOnly{memory.New()})
	if _, ok, err := plain.Revision(ctx); ok || err != nil {
		t.Errorf("stores without revisions should report ok=false, got ok=%v err=%v", ok, err)
	}
}

// storeOnly hides every method beyond records.RecordStore.
type storeOnly struct{ records.RecordStore }
