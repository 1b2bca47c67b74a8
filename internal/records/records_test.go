package records_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/records"
	"financas/internal/records/memory"
)

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := records.NewRecords(store)

	txs, err := r.Transactions(ctx)
	if err != nil || txs == nil || len(txs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v err=%v", txs, err)
	}

	created := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	in := []core.Transaction{{
		ID:          "t1",
		Amount:      decimal.RequireFromString("12.5"),
		Description: "mercado",
		Type:        core.Expense,
		Category:    core.Food,
		Date:        core.NewDate(2024, 1, 5),
		CreatedAt:   created,
	}}
	if err := r.SaveTransactions(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, _ := store.Get(ctx, records.Transactions)
	if !strings.Contains(string(raw), `"amount":12.5`) {
		t.Errorf("amount should be stored as a JSON number: %s", raw)
	}
	if !strings.Contains(string(raw), `"date":"2024-01-05T00:00:00Z"`) {
		t.Errorf("date should be stored as ISO-8601: %s", raw)
	}

	out, err := r.Transactions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 1 || out[0].ID != "t1" || !out[0].Amount.Equal(in[0].Amount) ||
		!out[0].Date.Equal(in[0].Date.Time) || !out[0].CreatedAt.Equal(created) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestRecordsGoalsRecomputeCompleted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	payload := `[{"id":"g","title":"Viagem","targetAmount":100,"currentAmount":150,"deadline":"2024-12-31","category":"other","completed":false}]`
	if err := store.Set(ctx, records.Goals, []byte(payload)); err != nil {
		t.Fatal(err)
	}
	goals, err := records.NewRecords(store).Goals(ctx)
	if err != nil {
		t.Fatalf("load goals: %v", err)
	}
	if len(goals) != 1 || !goals[0].Completed {
		t.Fatalf("expected completed recomputed to true, got %+v", goals)
	}
}

type failingStore struct{ memory.Store }

var errBoom = errors.New("boom")

func (f *failingStore) Get(context.Context, records.Collection) ([]byte, error) { return nil, errBoom }

func TestRecordsErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := records.NewRecords(&failingStore{}).Budgets(ctx); !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}

	store := memory.New()
	_ = store.Set(ctx, records.Budgets, []byte("{broken"))
	if _, err := records.NewRecords(store).Budgets(ctx); err == nil {
		t.Fatal("expected decode error")
	}
}
