package csvfile

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/qubic/go-ledger-engine/entities"
	"github.com/shopspring/decimal"
)

// maxAmountExponent bounds the exponent of an amount. Rounding a value with a larger exponent would
// expand it to that many digits.
const maxAmountExponent = 28

const (
	typeColumn   = "type"
	clientColumn = "client"
	txColumn     = "tx"
	amountColumn = "amount"
)

type columns struct {
	txType int
	client int
	tx     int
	amount int // -1 if the input has no amount column
}

// Reader lazily reads transactions from delimited text with a `type,client,tx,amount` header.
// Columns are matched by name, fields are trimmed.
type Reader struct {
	reader  *csv.Reader
	closer  io.Closer
	columns columns
}

func NewReader(r io.Reader) (*Reader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing csv header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading csv header")
	}

	cols, err := parseHeader(header)
	if err != nil {
		return nil, errors.Wrap(err, "parsing csv header")
	}

	return &Reader{reader: reader, columns: cols}, nil
}

// OpenFile opens the file at path. The caller needs to close the returned reader.
func OpenFile(path string) (*Reader, error) {
	// #nosec G304 -- the input file is provided by the operator.
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening [%s]", path)
	}

	reader, err := NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "reading [%s]", path)
	}
	reader.closer = file
	return reader, nil
}

// Next returns the next transaction or io.EOF. Malformed rows are reported with their line number.
func (r *Reader) Next() (entities.Transaction, error) {
	record, err := r.reader.Read()
	if errors.Is(err, io.EOF) {
		return entities.Transaction{}, io.EOF
	}
	if err != nil {
		return entities.Transaction{}, errors.Wrap(err, "reading csv record")
	}

	tx, err := parseRecord(r.columns, record)
	if err != nil {
		line, _ := r.reader.FieldPos(0)
		return entities.Transaction{}, errors.Wrapf(err, "parsing line %d", line)
	}
	return tx, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func parseHeader(header []string) (columns, error) {
	cols := columns{txType: -1, client: -1, tx: -1, amount: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case typeColumn:
			cols.txType = i
		case clientColumn:
			cols.client = i
		case txColumn:
			cols.tx = i
		case amountColumn:
			cols.amount = i
		}
	}

	switch {
	case cols.txType < 0:
		return columns{}, errors.Errorf("missing column [%s]", typeColumn)
	case cols.client < 0:
		return columns{}, errors.Errorf("missing column [%s]", clientColumn)
	case cols.tx < 0:
		return columns{}, errors.Errorf("missing column [%s]", txColumn)
	}
	return cols, nil
}

func parseRecord(cols columns, record []string) (entities.Transaction, error) {
	txType, err := entities.ParseTxType(field(record, cols.txType))
	if err != nil {
		return entities.Transaction{}, errors.Wrapf(err, "invalid type [%s]", field(record, cols.txType))
	}

	client, err := strconv.ParseUint(field(record, cols.client), 10, 16)
	if err != nil {
		return entities.Transaction{}, errors.Wrap(err, "invalid client")
	}

	id, err := strconv.ParseUint(field(record, cols.tx), 10, 32)
	if err != nil {
		return entities.Transaction{}, errors.Wrap(err, "invalid tx")
	}

	tx := entities.Transaction{
		Type:   txType,
		Client: uint16(client),
		ID:     uint32(id),
		Amount: decimal.Zero,
	}

	// control operations carry no amount, whatever the column holds
	if !txType.IsRoot() {
		return tx, nil
	}

	tx.Amount, err = ParseAmount(field(record, cols.amount))
	if err != nil {
		return entities.Transaction{}, err
	}
	return tx, nil
}

// ParseAmount accepts decimal text or a numeric literal and rounds it to four fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, entities.ErrMissingAmount
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "invalid amount [%s]", s)
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Decimal{}, errors.Errorf("amount out of range [%s]", s)
	}
	return amount.Round(entities.AmountPrecision), nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
