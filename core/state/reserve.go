package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"openreserve/native/reserve"
)

// Persisted row layouts. One row per registered asset per table; the
// borrow-fee pool table is sparse and rows exist only after the first
// deposit.

type storedBalanceSheet struct {
	Cash          *big.Int
	Debt          *big.Int
	Revenue       *big.Int
	ReceiptSupply *big.Int
}

type storedPrice struct {
	Num *big.Int
	Den *big.Int
}

// GetBalanceSheet loads the asset's balance sheet. Missing rows return nil.
func (m *Manager) GetBalanceSheet(asset string) (*reserve.BalanceSheet, error) {
	data, ok, err := m.getRaw(ReserveSheetKey(asset))
	if err != nil || !ok {
		return nil, err
	}
	var row storedBalanceSheet
	if err := rlp.DecodeBytes(data, &row); err != nil {
		return nil, err
	}
	return &reserve.BalanceSheet{
		Cash:          row.Cash,
		Debt:          row.Debt,
		Revenue:       row.Revenue,
		ReceiptSupply: row.ReceiptSupply,
	}, nil
}

// PutBalanceSheet stores the asset's balance sheet.
func (m *Manager) PutBalanceSheet(asset string, sheet *reserve.BalanceSheet) error {
	row := storedBalanceSheet{
		Cash:          zeroIfNil(sheet.Cash),
		Debt:          zeroIfNil(sheet.Debt),
		Revenue:       zeroIfNil(sheet.Revenue),
		ReceiptSupply: zeroIfNil(sheet.ReceiptSupply),
	}
	encoded, err := rlp.EncodeToBytes(&row)
	if err != nil {
		return err
	}
	return m.putRaw(ReserveSheetKey(asset), encoded)
}

// GetPrice loads the stored exchange price. Missing rows return nil: the
// engine lazily initialises the price on first use.
func (m *Manager) GetPrice(asset string) (*big.Rat, error) {
	data, ok, err := m.getRaw(ReservePriceKey(asset))
	if err != nil || !ok {
		return nil, err
	}
	var row storedPrice
	if err := rlp.DecodeBytes(data, &row); err != nil {
		return nil, err
	}
	if row.Den == nil || row.Den.Sign() == 0 {
		return nil, nil
	}
	return new(big.Rat).SetFrac(row.Num, row.Den), nil
}

// PutPrice stores the exchange price as a numerator/denominator pair.
func (m *Manager) PutPrice(asset string, price *big.Rat) error {
	row := storedPrice{Num: price.Num(), Den: price.Denom()}
	encoded, err := rlp.EncodeToBytes(&row)
	if err != nil {
		return err
	}
	return m.putRaw(ReservePriceKey(asset), encoded)
}

// GetFlashFeeRate loads the flash-loan fee rate in basis points. Missing
// rows default to zero.
func (m *Manager) GetFlashFeeRate(asset string) (uint64, error) {
	data, ok, err := m.getRaw(ReserveFlashFeeKey(asset))
	if err != nil || !ok {
		return 0, err
	}
	var bps uint64
	if err := rlp.DecodeBytes(data, &bps); err != nil {
		return 0, err
	}
	return bps, nil
}

// PutFlashFeeRate stores the flash-loan fee rate.
func (m *Manager) PutFlashFeeRate(asset string, bps uint64) error {
	encoded, err := rlp.EncodeToBytes(bps)
	if err != nil {
		return err
	}
	return m.putRaw(ReserveFlashFeeKey(asset), encoded)
}

// GetVault loads the asset's underlying vault pool. Missing rows default to
// zero.
func (m *Manager) GetVault(asset string) (*big.Int, error) {
	return m.getPool(ReserveVaultKey(asset))
}

// PutVault stores the asset's underlying vault pool.
func (m *Manager) PutVault(asset string, amount *big.Int) error {
	return m.putPool(ReserveVaultKey(asset), amount)
}

// GetFeeVault loads the asset's borrow-fee pool. The second return reports
// whether the pool was ever created.
func (m *Manager) GetFeeVault(asset string) (*big.Int, bool, error) {
	key := ReserveFeePoolKey(asset)
	data, ok, err := m.getRaw(key)
	if err != nil || !ok {
		return nil, false, err
	}
	pool := new(big.Int)
	if err := rlp.DecodeBytes(data, pool); err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

// PutFeeVault stores the asset's borrow-fee pool, creating it if absent.
func (m *Manager) PutFeeVault(asset string, amount *big.Int) error {
	return m.putPool(ReserveFeePoolKey(asset), amount)
}

func (m *Manager) getPool(key []byte) (*big.Int, error) {
	data, ok, err := m.getRaw(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	pool := new(big.Int)
	if err := rlp.DecodeBytes(data, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (m *Manager) putPool(key []byte, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(zeroIfNil(amount))
	if err != nil {
		return err
	}
	return m.putRaw(key, encoded)
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
