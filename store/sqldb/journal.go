package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/warp/revenue-engine/generic"
)

// =============================================================================
// JOURNAL (generic.Store interface)
// =============================================================================

const transactionColumns = `id, entity_id, account_id, effective_at, delta, tx_type,
	reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

var _ generic.TxStore = (*Store)(nil)

func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, s.driver, s.db, tx)
}

func appendTx(ctx context.Context, driver string, db execer, tx generic.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := rebind(driver, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = db.ExecContext(ctx, query,
		string(tx.ID),
		string(tx.EntityID),
		string(tx.AccountID),
		tx.EffectiveAt.String(),
		tx.Delta.Value.String(),
		string(tx.Type),
		nullString(string(tx.ReferenceID)),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	keys := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if keys[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		keys[tx.IdempotencyKey] = true
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := appendTx(ctx, s.driver, sqlTx, tx); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func (s *Store) Load(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	return loadTransactions(ctx, s.driver, s.db, entityID, accountID)
}

func (s *Store) LoadEntity(ctx context.Context, entityID generic.EntityID) ([]generic.Transaction, error) {
	return loadEntity(ctx, s.driver, s.db, entityID)
}

func (s *Store) Get(ctx context.Context, id generic.TransactionID) (generic.Transaction, error) {
	return getTransaction(ctx, s.driver, s.db, id)
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return keyExists(ctx, s.driver, s.db, idempotencyKey)
}

func loadTransactions(ctx context.Context, driver string, q querier, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	query := rebind(driver, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entity_id = ? AND account_id = ?
		ORDER BY seq ASC
	`)
	return queryTransactions(ctx, q, query, string(entityID), string(accountID))
}

func loadEntity(ctx context.Context, driver string, q querier, entityID generic.EntityID) ([]generic.Transaction, error) {
	query := rebind(driver, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entity_id = ?
		ORDER BY seq ASC
	`)
	return queryTransactions(ctx, q, query, string(entityID))
}

func getTransaction(ctx context.Context, driver string, q querier, id generic.TransactionID) (generic.Transaction, error) {
	query := rebind(driver, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`)
	txs, err := queryTransactions(ctx, q, query, string(id))
	if err != nil {
		return generic.Transaction{}, err
	}
	if len(txs) == 0 {
		return generic.Transaction{}, generic.ErrEntryNotFound
	}
	return txs[0], nil
}

func keyExists(ctx context.Context, driver string, q querier, idempotencyKey string) (bool, error) {
	query := rebind(driver, `SELECT 1 FROM transactions WHERE idempotency_key = ?`)
	var one int
	err := q.QueryRowContext(ctx, query, idempotencyKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return true, nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		id             string
		entityID       string
		accountID      string
		effectiveAt    string
		delta          string
		txType         string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&id, &entityID, &accountID, &effectiveAt, &delta, &txType,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = generic.TransactionID(id)
	tx.EntityID = generic.EntityID(entityID)
	tx.AccountID = generic.AccountID(accountID)
	tx.Type = generic.TransactionType(txType)
	if tx.EffectiveAt, err = generic.ParseDate(effectiveAt); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", id, err)
	}
	if tx.Delta, err = generic.ParseAmount(delta); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", id, err)
	}
	tx.ReferenceID = generic.TransactionID(referenceID.String)
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return tx, fmt.Errorf("transaction %s created_at: %w", id, err)
	}

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("transaction %s metadata: %w", id, err)
		}
	}
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, driver: s.driver}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction.
type txStore struct {
	tx     *sql.Tx
	driver string
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.driver, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	for _, tx := range txs {
		if err := appendTx(ctx, ts.driver, ts.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Load(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	return loadTransactions(ctx, ts.driver, ts.tx, entityID, accountID)
}

func (ts *txStore) LoadEntity(ctx context.Context, entityID generic.EntityID) ([]generic.Transaction, error) {
	return loadEntity(ctx, ts.driver, ts.tx, entityID)
}

func (ts *txStore) Get(ctx context.Context, id generic.TransactionID) (generic.Transaction, error) {
	return getTransaction(ctx, ts.driver, ts.tx, id)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return keyExists(ctx, ts.driver, ts.tx, idempotencyKey)
}
