package ledger

import "math/big"

var (
	secondsPerPeriod = big.NewInt(SecondsPerPeriod)
	msPerSecond      = big.NewInt(1000)
)

// ratePerSecond derives the streaming rate from a period amount using
// truncating division. The remainder is discarded for the lifetime of the
// deposit; a period amount below SecondsPerPeriod yields a zero rate.
func ratePerSecond(periodAmount *big.Int) *big.Int {
	if periodAmount == nil || periodAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(periodAmount, secondsPerPeriod)
}

// elapsedSeconds converts a millisecond interval into whole seconds.
// Sub-second remainders are not carried and vest only once a full second has
// accumulated.
func elapsedSeconds(fromMs, toMs int64) *big.Int {
	if toMs <= fromMs {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(big.NewInt(toMs), big.NewInt(fromMs))
	return delta.Div(delta, msPerSecond)
}

// vestedAmount returns rate * whole seconds elapsed between the two
// millisecond timestamps.
func vestedAmount(rate *big.Int, fromMs, toMs int64) *big.Int {
	if rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	seconds := elapsedSeconds(fromMs, toMs)
	if seconds.Sign() <= 0 {
		return big.NewInt(0)
	}
	return seconds.Mul(seconds, rate)
}

// minBig returns the smaller of the two values without mutating either.
func minBig(a, b *big.Int) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	if b == nil {
		return big.NewInt(0)
	}
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
