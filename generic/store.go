/*
store.go - Persistence interface for journal transactions

PURPOSE:
  Defines the boundary between the journal and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  A non-empty idempotency key may appear once. The recognition ledger uses
  this to make "recognize entry X" and "reverse record Y" happen at most once
  even when two callers race past the application-level checks.

ORDERING:
  Load and LoadEntity return transactions in append order. The journal is a
  history, not a calendar; EffectiveAt is informational.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for tests and single-process use
  - store/sqldb: SQLite / PostgreSQL
*/
package generic

import "context"

// Store handles persistence of transactions. APPEND-ONLY.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if
	// the key already exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+account in append order.
	Load(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error)

	// LoadEntity returns all transactions for an entity in append order.
	LoadEntity(ctx context.Context, entityID EntityID) ([]Transaction, error)

	// Get returns a transaction by ID or ErrEntryNotFound.
	Get(ctx context.Context, id TransactionID) (Transaction, error)

	// Exists checks if an idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. A non-nil error from fn rolls
	// back every write fn made.
	WithTx(ctx context.Context, fn func(Store) error) error
}
