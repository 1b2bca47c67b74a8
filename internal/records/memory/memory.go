package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"financas/internal/records"
)

// Store keeps collections in process memory.
type Store struct {
	mu   sync.Mutex
	data map[records.Collection][]byte
	rev  int64
}

var (
	_ records.RecordStore = (*Store)(nil)
	_ records.Revisioner  = (*Store)(nil)
)

func New() *Store {
	return &Store{data: make(map[records.Collection][]byte)}
}

// NewFromFile seeds the store from a backup file ({"transactions": [...], "budgets": [...], "goals": [...]}).
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var backup map[string]json.RawMessage
	if err := json.Unmarshal(raw, &backup); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for _, c := range records.Collections() {
		if payload, ok := backup[c.BackupKey()]; ok && len(payload) > 0 {
			s.data[c] = append([]byte(nil), payload...)
		}
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, c records.Collection) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.data[c]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

func (s *Store) Set(_ context.Context, c records.Collection, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c] = append([]byte(nil), payload...)
	s.rev++
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[records.Collection][]byte)
	s.rev++
	return nil
}

func (s *Store) Revision(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev, nil
}
