package ledger

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/qubic/go-ledger-engine/entities"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source yields transactions in the order they should be applied. Next returns io.EOF once exhausted.
type Source interface {
	Next() (entities.Transaction, error)
}

type TransactionIndex interface {
	// StoreTransaction registers a root transaction before it is applied.
	StoreTransaction(ctx context.Context, tx entities.Transaction) error
	// FindTransaction returns the root transaction with its current state, or
	// entities.ErrStoreEntityNotFound.
	FindTransaction(ctx context.Context, id uint32) (entities.Transaction, error)
	SetTransactionState(ctx context.Context, id uint32, state entities.TxState) error
}

// TransactionStateFinder is optionally implemented by a TransactionIndex that can report the state of a
// root transaction without loading its body. The engine prefers it for the duplicate check of every
// deposit and withdrawal.
type TransactionStateFinder interface {
	// FindTransactionState returns entities.ErrStoreEntityNotFound for unknown ids.
	FindTransactionState(ctx context.Context, id uint32) (entities.TxState, error)
}

type Status struct {
	Read     uint64 `json:"read"`
	Applied  uint64 `json:"applied"`
	Skipped  uint64 `json:"skipped"`
	Finished bool   `json:"finished"`
}

type Engine struct {
	index    TransactionIndex
	accounts *accountTable
	metrics  *Metrics
	logger   *zap.SugaredLogger

	read     atomic.Uint64
	applied  atomic.Uint64
	skipped  atomic.Uint64
	finished atomic.Bool
}

func NewEngine(index TransactionIndex, metrics *Metrics, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		index:    index,
		accounts: newAccountTable(),
		metrics:  metrics,
		logger:   logger,
	}
}

// Process applies every transaction of the source in order. Records that violate a precondition are
// skipped; an error is only returned if the source or the index fail, or ctx is done.
func (e *Engine) Process(ctx context.Context, source Source) error {
	e.logger.Infow("Starting ledger processing")

	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "processing cancelled")
		}

		tx, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "reading transaction after [%d] records", e.read.Load())
		}
		e.read.Add(1)
		e.metrics.IncProcessedRecords(tx.Type.String())

		reason, err := e.apply(ctx, tx)
		if err != nil {
			return errors.Wrapf(err, "applying %s [%d]", tx.Type, tx.ID)
		}
		if reason != "" {
			e.skipped.Add(1)
			e.metrics.IncSkippedRecords(tx.Type.String(), reason)
			e.logger.Debugw("Skipped transaction", "type", tx.Type.String(), "client", tx.Client, "tx", tx.ID, "reason", reason)
			continue
		}
		e.applied.Add(1)
	}

	e.finished.Store(true)
	total, locked := e.accounts.counts()
	e.metrics.SetAccounts(total, locked)
	e.logger.Infow("Finished ledger processing", "records", e.read.Load(), "skipped", e.skipped.Load(), "accounts", total, "locked", locked)

	return nil
}

func (e *Engine) Accounts() []entities.Account {
	return e.accounts.snapshot()
}

func (e *Engine) Account(client uint16) (entities.Account, bool) {
	return e.accounts.get(client)
}

func (e *Engine) Status() Status {
	return Status{
		Read:     e.read.Load(),
		Applied:  e.applied.Load(),
		Skipped:  e.skipped.Load(),
		Finished: e.finished.Load(),
	}
}

func (e *Engine) apply(ctx context.Context, tx entities.Transaction) (SkipReason, error) {
	// every referenced client gets an account, even if the record has no effect
	e.accounts.update(tx.Client, func(*entities.Account) {})

	switch tx.Type {
	case entities.Deposit, entities.Withdrawal:
		return e.applyRoot(ctx, tx)
	case entities.Dispute:
		return e.applyControl(ctx, tx, entities.Processed, entities.Disputed, func(account *entities.Account, amount decimal.Decimal) {
			account.Held = account.Held.Add(amount)
		})
	case entities.Resolve:
		return e.applyControl(ctx, tx, entities.Disputed, entities.Processed, func(account *entities.Account, amount decimal.Decimal) {
			account.Held = account.Held.Sub(amount)
		})
	case entities.Chargeback:
		return e.applyControl(ctx, tx, entities.Disputed, entities.ChargedBack, func(account *entities.Account, amount decimal.Decimal) {
			account.Held = account.Held.Sub(amount)
			account.Total = account.Total.Sub(amount)
			account.Locked = true
		})
	default:
		return SkipUnsupportedType, nil
	}
}

func (e *Engine) applyRoot(ctx context.Context, tx entities.Transaction) (SkipReason, error) {
	state, err := e.findState(ctx, tx.ID)
	if err == nil && state != entities.NeedsProcessing {
		return SkipDuplicateTx, nil
	}
	if err != nil && !errors.Is(err, entities.ErrStoreEntityNotFound) {
		return "", errors.Wrap(err, "finding transaction")
	}

	tx.State = entities.NeedsProcessing
	if err := e.index.StoreTransaction(ctx, tx); err != nil {
		return "", errors.Wrap(err, "storing transaction")
	}

	var reason SkipReason
	e.accounts.update(tx.Client, func(account *entities.Account) {
		switch {
		case tx.Type == entities.Deposit:
			account.Total = account.Total.Add(tx.Amount)
		case account.Locked:
			reason = SkipAccountLocked
		case account.Available().LessThan(tx.Amount):
			reason = SkipInsufficientFunds
		default:
			account.Total = account.Total.Sub(tx.Amount)
		}
	})

	// a declined withdrawal is handled as well and is never retried
	if err := e.index.SetTransactionState(ctx, tx.ID, entities.Processed); err != nil {
		return "", errors.Wrap(err, "setting transaction state")
	}

	return reason, nil
}

func (e *Engine) applyControl(ctx context.Context, tx entities.Transaction, from, to entities.TxState, effect func(account *entities.Account, amount decimal.Decimal)) (SkipReason, error) {
	target, err := e.index.FindTransaction(ctx, tx.ID)
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return SkipUnknownTx, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "finding referenced transaction")
	}

	if target.Client != tx.Client {
		return SkipClientMismatch, nil
	}
	if target.State != from {
		return SkipInvalidState, nil
	}

	if err := e.index.SetTransactionState(ctx, target.ID, to); err != nil {
		return "", errors.Wrap(err, "setting transaction state")
	}

	// withdrawals go through the same state transitions without touching the account
	if target.Type != entities.Deposit {
		return "", nil
	}

	e.accounts.update(tx.Client, func(account *entities.Account) {
		effect(account, target.Amount)
	})

	return "", nil
}

func (e *Engine) findState(ctx context.Context, id uint32) (entities.TxState, error) {
	if finder, ok := e.index.(TransactionStateFinder); ok {
		return finder.FindTransactionState(ctx, id)
	}

	tx, err := e.index.FindTransaction(ctx, id)
	if err != nil {
		return entities.NeedsProcessing, err
	}
	return tx.State, nil
}
