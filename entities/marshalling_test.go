package entities

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// IMPORTANT: the marshalling needs to be similar to the consumer code and the elastic index, otherwise
// the deserialization will fail and/or ingesting to elastic will not work.
func TestAccount_Marshal(t *testing.T) {
	account := Account{
		Client: 7,
		Held:   decimal.RequireFromString("1.5"),
		Total:  decimal.NewFromInt(3),
		Locked: true,
	}

	expectedJson := `{"client":7,"available":"1.5000","held":"1.5000","total":"3.0000","locked":true}`
	marshalled, err := json.Marshal(account)
	assert.NoError(t, err)
	assert.Equal(t, expectedJson, string(marshalled))
}

func TestAccount_Available(t *testing.T) {
	account := NewAccount(1)
	assert.Equal(t, "0.0000", FormatAmount(account.Available()))

	account.Total = decimal.RequireFromString("10")
	account.Held = decimal.RequireFromString("2.25")
	assert.Equal(t, "7.7500", FormatAmount(account.Available()))

	// chargeback after a withdrawal can push the total below zero
	account.Total = decimal.RequireFromString("-5")
	account.Held = decimal.Zero
	assert.Equal(t, "-5.0000", FormatAmount(account.Available()))
}

func TestParseTxType(t *testing.T) {
	testData := []struct {
		input    string
		expected TxType
		err      error
	}{
		{input: "deposit", expected: Deposit},
		{input: " Withdrawal ", expected: Withdrawal},
		{input: "DISPUTE", expected: Dispute},
		{input: "resolve", expected: Resolve},
		{input: "chargeBack", expected: Chargeback},
		{input: "transfer", err: ErrUnknownTxType},
		{input: "", err: ErrUnknownTxType},
	}

	for _, testRun := range testData {
		t.Run(testRun.input, func(t *testing.T) {
			got, err := ParseTxType(testRun.input)
			if testRun.err != nil {
				require.ErrorIs(t, err, testRun.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testRun.expected, got)
			require.Equal(t, testRun.expected.IsRoot(), got == Deposit || got == Withdrawal)
		})
	}
}
