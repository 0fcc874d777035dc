package csvfile

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/qubic/go-ledger-engine/entities"
)

// Index looks up root transactions by re-scanning the input file. Only transaction states are kept
// in memory, transaction bodies are read again on every lookup.
type Index struct {
	path     string
	openFile func(path string) (*Reader, error)
	states   map[uint32]entities.TxState
	mu       sync.RWMutex
}

func NewIndex(path string) *Index {
	return &Index{
		path:     path,
		openFile: OpenFile,
		states:   make(map[uint32]entities.TxState),
	}
}

// StoreTransaction is a no-op, the transaction is read from the file again when needed.
func (idx *Index) StoreTransaction(_ context.Context, _ entities.Transaction) error {
	return nil
}

// FindTransaction returns the first root transaction with the given id. Rows that cannot be parsed
// are ignored here, the source reports them when it reaches them.
func (idx *Index) FindTransaction(ctx context.Context, id uint32) (entities.Transaction, error) {
	reader, err := idx.openFile(idx.path)
	if err != nil {
		return entities.Transaction{}, errors.Wrap(err, "opening transaction file")
	}
	defer reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return entities.Transaction{}, err
		}

		tx, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entities.Transaction{}, entities.ErrStoreEntityNotFound
		}
		if err != nil || tx.ID != id || !tx.Type.IsRoot() {
			continue
		}

		idx.mu.RLock()
		tx.State = idx.states[id] // NeedsProcessing if never set
		idx.mu.RUnlock()
		return tx, nil
	}
}

// FindTransactionState answers from the states kept in memory without reading the file. Every applied
// root transaction has a state, so an id without one has not been seen yet.
func (idx *Index) FindTransactionState(_ context.Context, id uint32) (entities.TxState, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	state, ok := idx.states[id]
	if !ok {
		return entities.NeedsProcessing, entities.ErrStoreEntityNotFound
	}
	return state, nil
}

func (idx *Index) SetTransactionState(_ context.Context, id uint32, state entities.TxState) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.states[id] = state
	return nil
}
