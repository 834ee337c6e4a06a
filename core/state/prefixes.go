package state

var (
	reserveSheetPrefix   = []byte("reserve/sheet/")
	reservePricePrefix   = []byte("reserve/price/")
	reserveFlashPrefix   = []byte("reserve/flashfee/")
	reserveVaultPrefix   = []byte("reserve/vault/")
	reserveFeePoolPrefix = []byte("reserve/feepool/")
)

func prefixedKey(prefix []byte, asset string) []byte {
	key := make([]byte, len(prefix)+len(asset))
	copy(key, prefix)
	copy(key[len(prefix):], asset)
	return key
}

// ReserveSheetKey returns the storage key for an asset's balance sheet.
func ReserveSheetKey(asset string) []byte { return prefixedKey(reserveSheetPrefix, asset) }

// ReservePriceKey returns the storage key for an asset's price entry.
func ReservePriceKey(asset string) []byte { return prefixedKey(reservePricePrefix, asset) }

// ReserveFlashFeeKey returns the storage key for an asset's flash-loan fee rate.
func ReserveFlashFeeKey(asset string) []byte { return prefixedKey(reserveFlashPrefix, asset) }

// ReserveVaultKey returns the storage key for an asset's vault pool.
func ReserveVaultKey(asset string) []byte { return prefixedKey(reserveVaultPrefix, asset) }

// ReserveFeePoolKey returns the storage key for an asset's borrow-fee pool.
func ReserveFeePoolKey(asset string) []byte { return prefixedKey(reserveFeePoolPrefix, asset) }
