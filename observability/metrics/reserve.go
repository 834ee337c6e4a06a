package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type ReserveMetrics struct {
	operations            *prometheus.CounterVec
	flashLoanFees         *prometheus.CounterVec
	exchangePrice         *prometheus.GaugeVec
	receiptSupply         *prometheus.GaugeVec
	outstandingFlashLoans prometheus.Gauge
}

var (
	reserveOnce     sync.Once
	reserveRegistry *ReserveMetrics
)

// Reserve returns the lazily-initialised metrics registry for ledger
// operations.
func Reserve() *ReserveMetrics {
	reserveOnce.Do(func() {
		reserveRegistry = &ReserveMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_operations_total",
				Help: "Count of ledger operations by name and result.",
			}, []string{"op", "result"}),
			flashLoanFees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_flash_loan_fees_total",
				Help: "Cumulative flash-loan fees collected per asset.",
			}, []string{"asset"}),
			exchangePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reserve_exchange_price",
				Help: "Current receipt-token exchange price per asset.",
			}, []string{"asset"}),
			receiptSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reserve_receipt_supply",
				Help: "Outstanding receipt-token units per asset.",
			}, []string{"asset"}),
			outstandingFlashLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "reserve_outstanding_flash_loans",
				Help: "Flash loans issued but not yet settled.",
			}),
		}
		prometheus.MustRegister(
			reserveRegistry.operations,
			reserveRegistry.flashLoanFees,
			reserveRegistry.exchangePrice,
			reserveRegistry.receiptSupply,
			reserveRegistry.outstandingFlashLoans,
		)
	})
	return reserveRegistry
}

// RecordOperation increments the operation counter for the outcome.
func (m *ReserveMetrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// RecordFlashLoanFee adds a collected fee to the per-asset counter.
func (m *ReserveMetrics) RecordFlashLoanFee(asset string, fee *big.Int) {
	if m == nil || fee == nil || fee.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(fee).Float64()
	m.flashLoanFees.WithLabelValues(asset).Add(value)
}

// SetExchangePrice records the current receipt price for the asset.
func (m *ReserveMetrics) SetExchangePrice(asset string, price *big.Rat) {
	if m == nil || price == nil {
		return
	}
	value, _ := price.Float64()
	m.exchangePrice.WithLabelValues(asset).Set(value)
}

// SetReceiptSupply records the outstanding receipt units for the asset.
func (m *ReserveMetrics) SetReceiptSupply(asset string, supply *big.Int) {
	if m == nil || supply == nil {
		return
	}
	value, _ := new(big.Float).SetInt(supply).Float64()
	m.receiptSupply.WithLabelValues(asset).Set(value)
}

// SetOutstandingFlashLoans records the number of unsettled obligations.
func (m *ReserveMetrics) SetOutstandingFlashLoans(n int) {
	if m == nil {
		return
	}
	m.outstandingFlashLoans.Set(float64(n))
}
