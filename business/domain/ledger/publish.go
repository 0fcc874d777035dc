package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/qubic/go-ledger-engine/entities"
	"golang.org/x/sync/errgroup"
)

type AccountPublisher interface {
	PublishAccounts(ctx context.Context, accounts []entities.Account) error
}

// Publish hands the same snapshot of the account table to every publisher concurrently.
func (e *Engine) Publish(ctx context.Context, publishers ...AccountPublisher) error {
	accounts := e.Accounts()

	var errorGroup errgroup.Group
	for _, publisher := range publishers {
		errorGroup.Go(func() error {
			return publisher.PublishAccounts(ctx, accounts)
		})
	}
	if err := errorGroup.Wait(); err != nil {
		return errors.Wrap(err, "publishing accounts")
	}

	e.logger.Infow("Published accounts", "accounts", len(accounts), "publishers", len(publishers))
	return nil
}
