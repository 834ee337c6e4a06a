package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"openreserve/native/reserve"
	"openreserve/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db)
}

func TestBalanceSheetRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	sheet, err := manager.GetBalanceSheet("USD")
	require.NoError(t, err)
	require.Nil(t, sheet, "missing sheet must read as nil")

	stored := &reserve.BalanceSheet{
		Cash:          big.NewInt(600),
		Debt:          big.NewInt(420),
		Revenue:       big.NewInt(2),
		ReceiptSupply: big.NewInt(1000),
	}
	require.NoError(t, manager.PutBalanceSheet("USD", stored))

	loaded, err := manager.GetBalanceSheet("USD")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.Cash.Cmp(stored.Cash))
	require.Zero(t, loaded.Debt.Cmp(stored.Debt))
	require.Zero(t, loaded.Revenue.Cmp(stored.Revenue))
	require.Zero(t, loaded.ReceiptSupply.Cmp(stored.ReceiptSupply))
}

func TestBalanceSheetNilFieldsStoredAsZero(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.PutBalanceSheet("USD", &reserve.BalanceSheet{}))

	loaded, err := manager.GetBalanceSheet("USD")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.Cash.Sign())
	require.Zero(t, loaded.ReceiptSupply.Sign())
}

func TestPriceRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	price, err := manager.GetPrice("USD")
	require.NoError(t, err)
	require.Nil(t, price, "missing price must read as nil")

	require.NoError(t, manager.PutPrice("USD", big.NewRat(1018, 1000)))
	price, err = manager.GetPrice("USD")
	require.NoError(t, err)
	require.NotNil(t, price)
	require.Zero(t, price.Cmp(big.NewRat(1018, 1000)))
}

func TestFlashFeeRateRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	bps, err := manager.GetFlashFeeRate("USD")
	require.NoError(t, err)
	require.Zero(t, bps, "missing rate must default to zero")

	require.NoError(t, manager.PutFlashFeeRate("USD", 30))
	bps, err = manager.GetFlashFeeRate("USD")
	require.NoError(t, err)
	require.Equal(t, uint64(30), bps)
}

func TestVaultPoolsAreIndependent(t *testing.T) {
	manager := newTestManager(t)

	require.NoError(t, manager.PutVault("USD", big.NewInt(1000)))
	require.NoError(t, manager.PutFeeVault("USD", big.NewInt(30)))

	vault, err := manager.GetVault("USD")
	require.NoError(t, err)
	require.Zero(t, vault.Cmp(big.NewInt(1000)))

	pool, ok, err := manager.GetFeeVault("USD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, pool.Cmp(big.NewInt(30)))

	// Another asset's rows are untouched.
	other, err := manager.GetVault("EUR")
	require.NoError(t, err)
	require.Zero(t, other.Sign())
	_, ok, err = manager.GetFeeVault("EUR")
	require.NoError(t, err)
	require.False(t, ok, "fee pool must not exist before first deposit")
}

func TestEngineAgainstPersistentState(t *testing.T) {
	manager := newTestManager(t)
	engine := reserve.NewEngine()
	engine.SetState(manager)

	require.NoError(t, manager.WithTransaction(func() error {
		return engine.RegisterAsset("USD")
	}))

	require.NoError(t, manager.WithTransaction(func() error {
		_, err := engine.Mint(reserve.NewBalance("USD", big.NewInt(1000)))
		return err
	}))

	// A failing operation inside a transaction leaves the ledger unchanged.
	err := manager.WithTransaction(func() error {
		if _, err := engine.Borrow("USD", big.NewInt(400)); err != nil {
			return err
		}
		_, err := engine.Borrow("USD", big.NewInt(700))
		return err
	})
	require.ErrorIs(t, err, reserve.ErrInsufficientCash)

	sheet, err := engine.BalanceSheet("USD")
	require.NoError(t, err)
	require.Zero(t, sheet.Debt.Sign(), "discarded borrow must not persist")
	require.Zero(t, sheet.Cash.Cmp(big.NewInt(1000)))
}
