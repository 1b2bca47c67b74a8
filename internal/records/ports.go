package records

import "context"

// Collection names a persisted record collection.
type Collection string

const (
	Transactions Collection = "finance_transactions"
	Budgets      Collection = "finance_budgets"
	Goals        Collection = "finance_goals"
)

// Collections lists every collection the application persists.
func Collections() []Collection {
	return []Collection{Transactions, Budgets, Goals}
}

// BackupKey is the key holding the collection in a backup document.
func (c Collection) BackupKey() string {
	switch c {
	case Transactions:
		return "transactions"
	case Budgets:
		return "budgets"
	case Goals:
		return "goals"
	}
	return string(c)
}

// Ports for record store adapters.
type (
	// RecordStore is a key-value surface holding one serialised JSON array per collection.
	RecordStore interface {
		// Get returns the stored payload, or nil when the collection has never been written.
		Get(ctx context.Context, c Collection) ([]byte, error)
		// Set replaces the stored payload.
		Set(ctx context.Context, c Collection, payload []byte) error
		// Clear removes every collection.
		Clear(ctx context.Context) error
	}

	// Revisioner is implemented by stores that count writes. The revision
	// advances on every Set and Clear, whichever process performs them.
	Revisioner interface {
		Revision(ctx context.Context) (int64, error)
	}

	// Closer is implemented by stores holding external resources.
	Closer interface {
		Close() error
	}
)
