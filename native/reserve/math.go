package reserve

import (
	"math/big"
	"strings"
)

var (
	basisPoints = big.NewInt(10_000)
	oneRat      = big.NewRat(1, 1)
)

const maxFeeRateBps = 10_000

func normalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// mulRatFloor returns floor(amount * rate). A nil or non-positive input
// yields zero; negative rates are rejected at the operation boundary before
// this helper runs.
func mulRatFloor(amount *big.Int, rate *big.Rat) *big.Int {
	if amount == nil || amount.Sign() <= 0 || rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, rate.Num())
	return product.Quo(product, rate.Denom())
}

// divRatFloor returns floor(amount / rate). Zero rates yield zero.
func divRatFloor(amount *big.Int, rate *big.Rat) *big.Int {
	if amount == nil || amount.Sign() <= 0 || rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, rate.Denom())
	return product.Quo(product, rate.Num())
}

// bpsShare returns floor(amount * bps / 10000).
func bpsShare(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return share.Quo(share, basisPoints)
}

// fracShare returns floor(amount * num / den). Zero or negative numerator
// or denominator yields zero.
func fracShare(amount *big.Int, num, den uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || num == 0 || den == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(num))
	return share.Quo(share, new(big.Int).SetUint64(den))
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}
