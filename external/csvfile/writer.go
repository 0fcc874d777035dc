package csvfile

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/qubic/go-ledger-engine/entities"
)

var accountHeader = []string{"client", "available", "held", "total", "locked"}

// Writer renders the account table as delimited text.
type Writer struct {
	writer *csv.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{writer: csv.NewWriter(w)}
}

func (w *Writer) PublishAccounts(_ context.Context, accounts []entities.Account) error {
	err := w.writer.Write(accountHeader)
	if err != nil {
		return errors.Wrap(err, "writing header")
	}

	for _, account := range accounts {
		err = w.writer.Write([]string{
			strconv.FormatUint(uint64(account.Client), 10),
			entities.FormatAmount(account.Available()),
			entities.FormatAmount(account.Held),
			entities.FormatAmount(account.Total),
			strconv.FormatBool(account.Locked),
		})
		if err != nil {
			return errors.Wrapf(err, "writing account [%d]", account.Client)
		}
	}

	w.writer.Flush()
	return errors.Wrap(w.writer.Error(), "flushing accounts")
}
