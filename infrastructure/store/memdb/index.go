package memdb

import (
	"context"
	"sync"

	"github.com/qubic/go-ledger-engine/entities"
)

// Index keeps every root transaction in memory. It is safe for concurrent use.
type Index struct {
	transactions map[uint32]entities.Transaction
	mu           sync.RWMutex
}

func NewIndex() *Index {
	return &Index{
		transactions: make(map[uint32]entities.Transaction),
	}
}

func (idx *Index) StoreTransaction(_ context.Context, tx entities.Transaction) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.transactions[tx.ID] = tx
	return nil
}

func (idx *Index) FindTransaction(_ context.Context, id uint32) (entities.Transaction, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tx, ok := idx.transactions[id]
	if !ok {
		return entities.Transaction{}, entities.ErrStoreEntityNotFound
	}
	return tx, nil
}

// SetTransactionState ignores unknown ids.
func (idx *Index) SetTransactionState(_ context.Context, id uint32, state entities.TxState) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, ok := idx.transactions[id]
	if !ok {
		return nil
	}
	tx.State = state
	idx.transactions[id] = tx
	return nil
}
