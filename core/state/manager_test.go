package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"openreserve/storage"
)

func TestWithTransactionCommitsOnSuccess(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	manager := NewManager(db)

	err := manager.WithTransaction(func() error {
		return manager.putRaw([]byte("reserve/vault/USD"), []byte{0x01})
	})
	require.NoError(t, err)

	ok, err := db.Has([]byte("reserve/vault/USD"))
	require.NoError(t, err)
	require.True(t, ok, "committed write must reach the database")
}

func TestWithTransactionDiscardsOnError(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	manager := NewManager(db)

	boom := errors.New("boom")
	err := manager.WithTransaction(func() error {
		require.NoError(t, manager.putRaw([]byte("reserve/vault/USD"), []byte{0x01}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := db.Has([]byte("reserve/vault/USD"))
	require.NoError(t, err)
	require.False(t, ok, "discarded write must not reach the database")
}

func TestStagedReadsSeeOwnWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	require.NoError(t, db.Put([]byte("k"), []byte{0xaa}))
	manager := NewManager(db)

	manager.Begin()
	value, ok, err := manager.getRaw([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0xaa}, value)

	require.NoError(t, manager.putRaw([]byte("k"), []byte{0xbb}))
	value, ok, err = manager.getRaw([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0xbb}, value, "staged write must shadow the database")

	manager.Discard()
	value, ok, err = manager.getRaw([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0xaa}, value, "discard must restore the database view")
}

func TestUnstagedWritesGoStraightThrough(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	manager := NewManager(db)

	require.NoError(t, manager.putRaw([]byte("k"), []byte{0x01}))
	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReserveKeysAreNamespaced(t *testing.T) {
	keys := map[string][]byte{
		"reserve/sheet/USD":    ReserveSheetKey("USD"),
		"reserve/price/USD":    ReservePriceKey("USD"),
		"reserve/flashfee/USD": ReserveFlashFeeKey("USD"),
		"reserve/vault/USD":    ReserveVaultKey("USD"),
		"reserve/feepool/USD":  ReserveFeePoolKey("USD"),
	}
	for want, got := range keys {
		require.Equal(t, want, string(got))
	}
}
