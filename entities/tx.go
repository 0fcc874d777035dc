package entities

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPrecision is the number of fractional digits kept for every amount.
const AmountPrecision = 4

type TxType uint8

const (
	Deposit TxType = iota + 1
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

var txTypeNames = map[TxType]string{
	Deposit:    "deposit",
	Withdrawal: "withdrawal",
	Dispute:    "dispute",
	Resolve:    "resolve",
	Chargeback: "chargeback",
}

func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsRoot reports whether the type carries an amount and does not refer to another transaction.
func (t TxType) IsRoot() bool {
	return t == Deposit || t == Withdrawal
}

// ParseTxType is case-insensitive and ignores surrounding whitespace.
func ParseTxType(s string) (TxType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range txTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, ErrUnknownTxType
}

// TxState is only tracked for root transactions.
type TxState uint8

const (
	NeedsProcessing TxState = iota
	Processed
	Disputed
	ChargedBack
)

func (s TxState) String() string {
	switch s {
	case NeedsProcessing:
		return "needs_processing"
	case Processed:
		return "processed"
	case Disputed:
		return "disputed"
	case ChargedBack:
		return "charged_back"
	default:
		return "unknown"
	}
}

type Transaction struct {
	Type   TxType
	Client uint16
	ID     uint32
	// Amount is only set for deposits and withdrawals.
	Amount decimal.Decimal
	State  TxState
}

type Account struct {
	Client uint16
	Held   decimal.Decimal
	Total  decimal.Decimal
	Locked bool
}

func NewAccount(client uint16) Account {
	return Account{
		Client: client,
		Held:   decimal.Zero,
		Total:  decimal.Zero,
	}
}

// Available is derived and never stored.
func (a Account) Available() decimal.Decimal {
	return a.Total.Sub(a.Held)
}

type accountSnapshot struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// FormatAmount renders an amount with exactly AmountPrecision fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPrecision)
}

// IMPORTANT: kafka consumers and the elastic index mapping rely on this layout.
func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountSnapshot{
		Client:    a.Client,
		Available: FormatAmount(a.Available()),
		Held:      FormatAmount(a.Held),
		Total:     FormatAmount(a.Total),
		Locked:    a.Locked,
	})
}
