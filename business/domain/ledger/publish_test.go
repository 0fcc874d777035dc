package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/qubic/go-ledger-engine/entities"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mu          sync.Mutex
	published   [][]entities.Account
	shouldError bool
}

func (mp *MockPublisher) PublishAccounts(_ context.Context, accounts []entities.Account) error {
	if mp.shouldError {
		return ErrMock
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.published = append(mp.published, accounts)
	return nil
}

func TestEngine_Publish(t *testing.T) {
	engine := process(t,
		deposit(2, 1, "10"),
		deposit(1, 2, "1"),
	)

	first, second := &MockPublisher{}, &MockPublisher{}
	err := engine.Publish(context.Background(), first, second)
	require.NoError(t, err)

	for _, publisher := range []*MockPublisher{first, second} {
		require.Len(t, publisher.published, 1)
		require.Len(t, publisher.published[0], 2)
		require.Equal(t, uint16(1), publisher.published[0][0].Client)
		require.Equal(t, uint16(2), publisher.published[0][1].Client)
	}
}

func TestEngine_PublishError(t *testing.T) {
	engine := process(t, deposit(1, 1, "10"))

	ok := &MockPublisher{}
	err := engine.Publish(context.Background(), ok, &MockPublisher{shouldError: true})
	require.ErrorIs(t, err, ErrMock)
	require.Len(t, ok.published, 1)
}

func TestEngine_PublishWithoutPublishers(t *testing.T) {
	engine := process(t, deposit(1, 1, "10"))
	require.NoError(t, engine.Publish(context.Background()))
}
