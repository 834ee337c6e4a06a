package reserve

import (
	"math/big"
	"testing"
)

func TestMulRatFloor(t *testing.T) {
	cases := []struct {
		amount int64
		num    int64
		den    int64
		want   int64
	}{
		{400, 1, 20, 20},
		{20, 1, 10, 2},
		{500, 1018, 1000, 509},
		{1, 1, 3, 0},
		{0, 1, 2, 0},
		{-5, 1, 2, 0},
	}
	for _, tc := range cases {
		got := mulRatFloor(big.NewInt(tc.amount), big.NewRat(tc.num, tc.den))
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("mulRatFloor(%d, %d/%d) = %s, want %d", tc.amount, tc.num, tc.den, got, tc.want)
		}
	}
	if got := mulRatFloor(big.NewInt(10), nil); got.Sign() != 0 {
		t.Fatalf("nil rate should yield zero, got %s", got)
	}
}

func TestDivRatFloor(t *testing.T) {
	cases := []struct {
		amount int64
		num    int64
		den    int64
		want   int64
	}{
		{1000, 1, 1, 1000},
		{100, 1020, 1000, 98},
		{1, 3, 2, 0},
	}
	for _, tc := range cases {
		got := divRatFloor(big.NewInt(tc.amount), big.NewRat(tc.num, tc.den))
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("divRatFloor(%d, %d/%d) = %s, want %d", tc.amount, tc.num, tc.den, got, tc.want)
		}
	}
}

func TestBpsShare(t *testing.T) {
	if got := bpsShare(big.NewInt(100), 30); got.Sign() != 0 {
		t.Fatalf("floor(100*30/10000) should be zero, got %s", got)
	}
	if got := bpsShare(big.NewInt(10_000), 100); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("floor(10000*100/10000) should be 100, got %s", got)
	}
	if got := bpsShare(big.NewInt(10_000), 0); got.Sign() != 0 {
		t.Fatalf("zero bps should yield zero, got %s", got)
	}
}

func TestFracShare(t *testing.T) {
	if got := fracShare(big.NewInt(101), 1, 2); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("floor(101/2) should be 50, got %s", got)
	}
	if got := fracShare(big.NewInt(101), 0, 2); got.Sign() != 0 {
		t.Fatalf("zero numerator should yield zero, got %s", got)
	}
	if got := fracShare(big.NewInt(101), 1, 0); got.Sign() != 0 {
		t.Fatalf("zero denominator should yield zero, got %s", got)
	}
}

func TestNormalizeAsset(t *testing.T) {
	if got := normalizeAsset(" usd "); got != "USD" {
		t.Fatalf("expected USD, got %q", got)
	}
	if got := normalizeAsset(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
