package pebbledb

import (
	"context"
	"os"
	"testing"

	"github.com/qubic/go-ledger-engine/entities"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPebbleStore_StoreAndFindTransaction(t *testing.T) {

	dbDir, err := os.MkdirTemp("", "pebble_test")
	require.NoError(t, err)
	defer os.RemoveAll(dbDir)

	store, err := NewIndexStore(dbDir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	testData := []struct {
		name string
		tx   entities.Transaction
	}{
		{
			name: "TestStoreTransaction_Deposit",
			tx:   entities.Transaction{Type: entities.Deposit, Client: 1, ID: 1, Amount: decimal.RequireFromString("10.1234")},
		},
		{
			name: "TestStoreTransaction_Withdrawal",
			tx:   entities.Transaction{Type: entities.Withdrawal, Client: 65535, ID: 4294967295, Amount: decimal.RequireFromString("0.0001")},
		},
		{
			name: "TestStoreTransaction_Processed",
			tx:   entities.Transaction{Type: entities.Deposit, Client: 300, ID: 77, Amount: decimal.NewFromInt(5), State: entities.Processed},
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			err := store.StoreTransaction(ctx, testRun.tx)
			require.NoError(t, err)

			got, err := store.FindTransaction(ctx, testRun.tx.ID)
			require.NoError(t, err)
			require.Equal(t, testRun.tx.Type, got.Type)
			require.Equal(t, testRun.tx.Client, got.Client)
			require.Equal(t, testRun.tx.ID, got.ID)
			require.Equal(t, testRun.tx.State, got.State)
			require.True(t, testRun.tx.Amount.Equal(got.Amount))
		})
	}
}

func TestPebbleStore_FindTransactionNotFound(t *testing.T) {
	store, err := NewInMemoryIndexStore()
	require.NoError(t, err)
	defer store.Close()

	_, err = store.FindTransaction(context.Background(), 123)
	require.ErrorIs(t, err, entities.ErrStoreEntityNotFound)
}

func TestPebbleStore_SetTransactionState(t *testing.T) {
	store, err := NewInMemoryIndexStore()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	err = store.StoreTransaction(ctx, entities.Transaction{Type: entities.Deposit, Client: 2, ID: 9, Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)

	for _, state := range []entities.TxState{entities.Processed, entities.Disputed, entities.Processed, entities.Disputed, entities.ChargedBack} {
		err = store.SetTransactionState(ctx, 9, state)
		require.NoError(t, err)

		got, err := store.FindTransaction(ctx, 9)
		require.NoError(t, err)
		require.Equal(t, state, got.State)
		require.True(t, decimal.NewFromInt(3).Equal(got.Amount))
	}

	// unknown ids are ignored
	err = store.SetTransactionState(ctx, 10, entities.Disputed)
	require.NoError(t, err)
	_, err = store.FindTransaction(ctx, 10)
	require.ErrorIs(t, err, entities.ErrStoreEntityNotFound)
}

func TestPebbleStore_CloseRemovesScratchDirectory(t *testing.T) {
	dbDir, err := os.MkdirTemp("", "pebble_test")
	require.NoError(t, err)
	defer os.RemoveAll(dbDir)

	store, err := NewIndexStore(dbDir)
	require.NoError(t, err)
	require.DirExists(t, store.dir)

	require.NoError(t, store.Close())
	require.NoDirExists(t, store.dir)
}
