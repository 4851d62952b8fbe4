// Package store provides in-memory generic.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/revenue-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory journal (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions []generic.Transaction // append order
	byID         map[generic.TransactionID]int
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		byID:        make(map[generic.TransactionID]int),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check every key up front so a failure leaves nothing behind
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}

	for _, tx := range txs {
		if err := m.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.byID[tx.ID] = len(m.transactions)
	m.transactions = append(m.transactions, tx)
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(func(tx generic.Transaction) bool {
		return tx.EntityID == entityID && tx.AccountID == accountID
	}), nil
}

func (m *Memory) LoadEntity(_ context.Context, entityID generic.EntityID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(func(tx generic.Transaction) bool {
		return tx.EntityID == entityID
	}), nil
}

func (m *Memory) Get(_ context.Context, id generic.TransactionID) (generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return generic.Transaction{}, generic.ErrEntryNotFound
	}
	return m.transactions[i], nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) filterLocked(keep func(generic.Transaction) bool) []generic.Transaction {
	var result []generic.Transaction
	for _, tx := range m.transactions {
		if keep(tx) {
			result = append(result, tx)
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn while holding the write lock. Writes go straight to the
// journal; on error the journal is truncated back to its length before fn.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	mark := len(tm.transactions)
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.rollback(mark)
		return err
	}
	return nil
}

// rollback drops everything appended after mark. Safe because the journal
// only ever grows at the tail.
func (tm *TxMemory) rollback(mark int) {
	for _, tx := range tm.transactions[mark:] {
		delete(tm.byID, tx.ID)
		if tx.IdempotencyKey != "" {
			delete(tm.idempotency, tx.IdempotencyKey)
		}
	}
	tm.transactions = tm.transactions[:mark]
}

// txMemoryView runs against the parent without re-locking.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	for _, tx := range txs {
		if err := tv.parent.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) Load(_ context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	return tv.parent.filterLocked(func(tx generic.Transaction) bool {
		return tx.EntityID == entityID && tx.AccountID == accountID
	}), nil
}

func (tv *txMemoryView) LoadEntity(_ context.Context, entityID generic.EntityID) ([]generic.Transaction, error) {
	return tv.parent.filterLocked(func(tx generic.Transaction) bool {
		return tx.EntityID == entityID
	}), nil
}

func (tv *txMemoryView) Get(_ context.Context, id generic.TransactionID) (generic.Transaction, error) {
	i, ok := tv.parent.byID[id]
	if !ok {
		return generic.Transaction{}, generic.ErrEntryNotFound
	}
	return tv.parent.transactions[i], nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
