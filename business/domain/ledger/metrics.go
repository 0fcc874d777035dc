package ledger

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type SkipReason string

const (
	SkipUnknownTx         SkipReason = "unknown_tx"
	SkipClientMismatch    SkipReason = "client_mismatch"
	SkipInvalidState      SkipReason = "invalid_state"
	SkipInsufficientFunds SkipReason = "insufficient_funds"
	SkipAccountLocked     SkipReason = "account_locked"
	SkipDuplicateTx       SkipReason = "duplicate_tx"
	SkipUnsupportedType   SkipReason = "unsupported_type"
)

type Metrics struct {
	processedRecordsCount *prometheus.CounterVec
	skippedRecordsCount   *prometheus.CounterVec
	accountsGauge         prometheus.Gauge
	lockedAccountsGauge   prometheus.Gauge
}

func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := Metrics{
		processedRecordsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_processed_records_count", namespace),
			Help: "The total number of transaction records read from the source",
		}, []string{"type"}),
		skippedRecordsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_skipped_records_count", namespace),
			Help: "The total number of transaction records that had no effect",
		}, []string{"type", "reason"}),
		accountsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_accounts", namespace),
			Help: "The number of known client accounts",
		}),
		lockedAccountsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_locked_accounts", namespace),
			Help: "The number of locked client accounts",
		}),
	}
	return &m
}

func (m *Metrics) IncProcessedRecords(txType string) {
	if m == nil {
		return
	}
	m.processedRecordsCount.WithLabelValues(txType).Inc()
}

func (m *Metrics) IncSkippedRecords(txType string, reason SkipReason) {
	if m == nil {
		return
	}
	m.skippedRecordsCount.WithLabelValues(txType, string(reason)).Inc()
}

func (m *Metrics) SetAccounts(total, locked int) {
	if m == nil {
		return
	}
	m.accountsGauge.Set(float64(total))
	m.lockedAccountsGauge.Set(float64(locked))
}
