package revenue

import "sync"

// ContractLocks serializes work per contract. Processing and ledger
// operations on the same contract take the same lock; different contracts
// proceed in parallel.
type ContractLocks struct {
	mu    sync.Mutex
	locks map[ContractID]*sync.Mutex
}

func NewContractLocks() *ContractLocks {
	return &ContractLocks{locks: make(map[ContractID]*sync.Mutex)}
}

// Lock blocks until the contract's lock is held and returns the unlock func.
func (l *ContractLocks) Lock(id ContractID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
