package ledger

import (
	"math/big"
	"testing"
)

func TestRatePerSecondTruncates(t *testing.T) {
	cases := []struct {
		period int64
		want   int64
	}{
		{2_592_000_000_000, 1_000_000},
		{2_592_000, 1},
		{2_591_999, 0},
		{2_592_001, 1},
		{0, 0},
		{-5, 0},
	}
	for _, tc := range cases {
		if got := ratePerSecond(big.NewInt(tc.period)); got.Int64() != tc.want {
			t.Fatalf("ratePerSecond(%d) = %s, want %d", tc.period, got, tc.want)
		}
	}
	if got := ratePerSecond(nil); got.Sign() != 0 {
		t.Fatalf("ratePerSecond(nil) = %s", got)
	}
}

func TestElapsedSecondsTruncates(t *testing.T) {
	cases := []struct {
		from, to int64
		want     int64
	}{
		{0, 999, 0},
		{0, 1000, 1},
		{0, 1999, 1},
		{1000, 2800, 1},
		{500, 500, 0},
		{1000, 900, 0}, // clock went backwards
	}
	for _, tc := range cases {
		if got := elapsedSeconds(tc.from, tc.to); got.Int64() != tc.want {
			t.Fatalf("elapsedSeconds(%d, %d) = %s, want %d", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestVestedAmount(t *testing.T) {
	rate := big.NewInt(1_000_000)
	if got := vestedAmount(rate, 0, 1000*1000); got.Int64() != 1_000_000_000 {
		t.Fatalf("vested = %s, want 1000000000", got)
	}
	if got := vestedAmount(rate, 0, 500); got.Sign() != 0 {
		t.Fatalf("sub-second interval vested %s", got)
	}
	if got := vestedAmount(big.NewInt(0), 0, 10_000); got.Sign() != 0 {
		t.Fatalf("zero rate vested %s", got)
	}
	if got := vestedAmount(nil, 0, 10_000); got.Sign() != 0 {
		t.Fatalf("nil rate vested %s", got)
	}
}

func TestMinBig(t *testing.T) {
	a, b := big.NewInt(3), big.NewInt(7)
	if got := minBig(a, b); got.Cmp(a) != 0 {
		t.Fatalf("minBig = %s", got)
	}
	if got := minBig(b, a); got.Cmp(a) != 0 {
		t.Fatalf("minBig reversed = %s", got)
	}
	got := minBig(a, b)
	got.SetInt64(99)
	if a.Int64() != 3 {
		t.Fatalf("minBig aliased its argument")
	}
	if got := minBig(nil, b); got.Sign() != 0 {
		t.Fatalf("minBig(nil, b) = %s", got)
	}
}
