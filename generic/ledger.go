/*
ledger.go - Append-only journal

PURPOSE:
  The journal is the immutable source of truth for every recognized amount.
  Recognitions, adjustments and reversals are recorded here, and totals are
  always computed by folding over the records. There is no stored "total"
  that can drift out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A wrong record is never edited. A reversal (exact negation) or an
  adjustment (signed delta) is appended that references it, and both stay in
  the journal:

    recognition +400.00   (Feb)
    reversal    -400.00   (ref: Feb)       total 0.00
    adjustment  +150.00   (ref: Feb)       total 150.00

SEE ALSO:
  - store.go: Low-level persistence interface
  - revenue/ledger.go: Recognition rules enforced on top of the journal
*/
package generic

import "context"

// Ledger is the source of truth for recognized amounts.
type Ledger interface {
	// Append adds a transaction. Fails if the idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+account in append order.
	Transactions(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error)

	// EntityTransactions returns all transactions for an entity in append order.
	EntityTransactions(ctx context.Context, entityID EntityID) ([]Transaction, error)

	// Transaction returns one transaction or ErrEntryNotFound.
	Transaction(ctx context.Context, id TransactionID) (Transaction, error)

	// Total folds every delta recorded for entity+account.
	Total(ctx context.Context, entityID EntityID, accountID AccountID) (Amount, error)

	// HasKey reports whether an idempotency key has been used.
	HasKey(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true

		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, accountID)
}

func (l *DefaultLedger) EntityTransactions(ctx context.Context, entityID EntityID) ([]Transaction, error) {
	return l.Store.LoadEntity(ctx, entityID)
}

func (l *DefaultLedger) Transaction(ctx context.Context, id TransactionID) (Transaction, error) {
	return l.Store.Get(ctx, id)
}

func (l *DefaultLedger) Total(ctx context.Context, entityID EntityID, accountID AccountID) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, accountID)
	if err != nil {
		return Amount{}, err
	}
	return TotalOf(txs), nil
}

func (l *DefaultLedger) HasKey(ctx context.Context, idempotencyKey string) (bool, error) {
	return l.Store.Exists(ctx, idempotencyKey)
}

// TotalOf folds the deltas of txs.
func TotalOf(txs []Transaction) Amount {
	total := Zero()
	for _, tx := range txs {
		total = total.Add(tx.Delta)
	}
	return total
}
