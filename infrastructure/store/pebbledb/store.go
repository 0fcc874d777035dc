package pebbledb

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/qubic/go-ledger-engine/entities"
	"github.com/shopspring/decimal"
)

const transactionKeyPrefix = 0x01

// value layout: type (1) | state (1) | client (2) | amount (decimal text)
const valueHeaderSize = 4

// Store is a transaction index backed by pebble. The data only lives as long as the store: an on
// disk store works in a scratch directory that is removed on Close.
type Store struct {
	db      *pebble.DB
	dir     string
	stateMu sync.Mutex
}

func NewIndexStore(storeDir string) (*Store, error) {
	err := os.MkdirAll(storeDir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "creating store folder [%s]", storeDir)
	}
	dir, err := os.MkdirTemp(storeDir, "tx-index-")
	if err != nil {
		return nil, errors.Wrap(err, "creating scratch directory")
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db, dir: dir}, nil
}

func NewInMemoryIndexStore() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("opening in memory pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func (ps *Store) StoreTransaction(_ context.Context, tx entities.Transaction) error {
	err := ps.db.Set(transactionKey(tx.ID), encodeTransaction(tx), pebble.NoSync)
	if err != nil {
		return errors.Wrapf(err, "storing transaction [%d]", tx.ID)
	}
	return nil
}

func (ps *Store) FindTransaction(_ context.Context, id uint32) (entities.Transaction, error) {
	return ps.get(id)
}

// SetTransactionState ignores unknown ids.
func (ps *Store) SetTransactionState(_ context.Context, id uint32, state entities.TxState) error {
	ps.stateMu.Lock()
	defer ps.stateMu.Unlock()

	tx, err := ps.get(id)
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	tx.State = state
	err = ps.db.Set(transactionKey(id), encodeTransaction(tx), pebble.NoSync)
	if err != nil {
		return errors.Wrapf(err, "setting state of transaction [%d] to [%s]", id, state)
	}
	return nil
}

func (ps *Store) get(id uint32) (entities.Transaction, error) {
	value, closer, err := ps.db.Get(transactionKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return entities.Transaction{}, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return entities.Transaction{}, errors.Wrapf(err, "getting transaction [%d]", id)
	}
	defer closer.Close()

	tx, err := decodeTransaction(id, value)
	if err != nil {
		return entities.Transaction{}, errors.Wrapf(err, "decoding transaction [%d]", id)
	}
	return tx, nil
}

func (ps *Store) Close() error {
	err := ps.db.Close()
	if ps.dir != "" {
		if rmErr := os.RemoveAll(ps.dir); rmErr != nil && err == nil {
			err = errors.Wrapf(rmErr, "removing scratch directory [%s]", ps.dir)
		}
	}
	return err
}

func transactionKey(id uint32) []byte {
	key := []byte{transactionKeyPrefix}
	return binary.BigEndian.AppendUint32(key, id)
}

func encodeTransaction(tx entities.Transaction) []byte {
	value := []byte{byte(tx.Type), byte(tx.State)}
	value = binary.BigEndian.AppendUint16(value, tx.Client)
	return append(value, tx.Amount.String()...)
}

func decodeTransaction(id uint32, value []byte) (entities.Transaction, error) {
	if len(value) < valueHeaderSize {
		return entities.Transaction{}, errors.Errorf("invalid value length [%d]", len(value))
	}

	// the value is only valid until the closer is closed
	amount, err := decimal.NewFromString(string(value[valueHeaderSize:]))
	if err != nil {
		return entities.Transaction{}, errors.Wrap(err, "parsing amount")
	}

	return entities.Transaction{
		Type:   entities.TxType(value[0]),
		State:  entities.TxState(value[1]),
		Client: binary.BigEndian.Uint16(value[2:4]),
		ID:     id,
		Amount: amount,
	}, nil
}
