package ledger

import (
	"slices"
	"sync"

	"github.com/qubic/go-ledger-engine/entities"
)

// accountTable is safe to use concurrently. Accounts are created lazily on first use and never deleted.
type accountTable struct {
	accounts map[uint16]*entities.Account
	mu       sync.RWMutex
}

func newAccountTable() *accountTable {
	return &accountTable{
		accounts: make(map[uint16]*entities.Account),
	}
}

// update runs fn against the client's account while holding the write lock, so readers never
// observe a partially applied transition.
func (t *accountTable) update(client uint16, fn func(account *entities.Account)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	account, ok := t.accounts[client]
	if !ok {
		created := entities.NewAccount(client)
		account = &created
		t.accounts[client] = account
	}
	fn(account)
}

func (t *accountTable) get(client uint16) (entities.Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	account, ok := t.accounts[client]
	if !ok {
		return entities.Account{}, false
	}
	return *account, true
}

func (t *accountTable) snapshot() []entities.Account {
	t.mu.RLock()
	values := make([]entities.Account, 0, len(t.accounts))
	for _, account := range t.accounts {
		values = append(values, *account)
	}
	t.mu.RUnlock()

	slices.SortFunc(values, func(a, b entities.Account) int {
		return int(a.Client) - int(b.Client)
	})
	return values
}

func (t *accountTable) counts() (total, locked int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, account := range t.accounts {
		if account.Locked {
			locked++
		}
	}
	return len(t.accounts), locked
}
