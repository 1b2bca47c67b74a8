package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"financas/internal/records"
)

func TestMemoryStoreGetSetClear(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.Get(ctx, records.Goals)
	if err != nil || got != nil {
		t.Fatalf("expected nil payload for unwritten collection, got %q err=%v", got, err)
	}

	payload := []byte(`[{"id":"1"}]`)
	if err := s.Set(ctx, records.Goals, payload); err != nil {
		t.Fatalf("set: %v", err)
	}
	payload[0] = 'X' // caller buffer must not alias stored data

	got, _ = s.Get(ctx, records.Goals)
	if string(got) != `[{"id":"1"}]` {
		t.Fatalf("unexpected payload %q", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := s.Get(ctx, records.Goals); got != nil {
		t.Fatalf("expected empty after clear, got %q", got)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file -> empty store
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if got, _ := s.Get(context.Background(), records.Transactions); got != nil {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.json")
	content := `{"transactions":[{"id":"t1"}],"goals":[],"exportDate":"2024-01-01T00:00:00Z"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, _ := s.Get(context.Background(), records.Transactions)
	if string(got) != `[{"id":"t1"}]` {
		t.Fatalf("unexpected transactions payload %q", got)
	}
	if got, _ := s.Get(context.Background(), records.Budgets); got != nil {
		t.Fatalf("budgets absent from seed should stay unset, got %q", got)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMemoryStoreRevision(t *testing.T) {
	ctx := context.Background()
	s := New()

	steps := []struct {
		name  string
		write func() error
		want  int64
	}{
		{"set", func() error { return s.Set(ctx, records.Transactions, []byte(`[]`)) }, 1},
		{"overwrite", func() error { return s.Set(ctx, records.Transactions, []byte(`[{"id":"1"}]`)) }, 2},
		{"clear", func() error { return s.Clear(ctx) }, 3},
	}
	for _, step := range steps {
		if err := step.write(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if _, err := s.Get(ctx, records.Transactions); err != nil {
			t.Fatalf("get: %v", err)
		}
		got, err := s.Revision(ctx)
		if err != nil || got != step.want {
			t.Errorf("after %s: revision = %d err=%v, want %d", step.name, got, err, step.want)
		}
	}
}

func TestNewFromFileLoadsEveryCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	content := `{"transactions":[{"id":"t"}],"budgets":[{"id":"b"}],"goals":[{"id":"g"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, c := range records.Collections() {
		got, _ := s.Get(context.Background(), c)
		if want := `[{"id":"` + c.BackupKey()[:1] + `"}]`; string(got) != want {
			t.Errorf("%s: got %q, want %q", c, got, want)
		}
	}
}
