package ledger

import "math/big"

// SecondsPerPeriod is the fixed billing period used to derive the per-second
// streaming rate from a period amount: 30 days of 24 hours.
const SecondsPerPeriod = 30 * 24 * 60 * 60

// Deposit tracks the streaming payment relationship between one payer and one
// payee. There is at most one deposit per (payer, payee) pair.
//
// A deposit with a zero RatePerSecond and a zero RemainingBalance is inert:
// it has been cancelled, holds no funds, and retains its timestamps for audit
// only.
type Deposit struct {
	Payer            [20]byte `json:"payer"`
	Payee            [20]byte `json:"payee"`
	TotalDeposited   *big.Int `json:"totalDeposited"`
	RemainingBalance *big.Int `json:"remainingBalance"`
	RatePerSecond    *big.Int `json:"ratePerSecond"`
	LastSettledAt    int64    `json:"lastSettledAt"`
	OpenedAt         int64    `json:"openedAt"`
}

// Active reports whether the deposit still holds funds or a live rate. A
// zero-rate deposit with a balance stays active so cancellation can recover
// the funds; only a cancelled record reads as inactive.
func (d *Deposit) Active() bool {
	if d == nil {
		return false
	}
	if d.RatePerSecond != nil && d.RatePerSecond.Sign() > 0 {
		return true
	}
	return d.RemainingBalance != nil && d.RemainingBalance.Sign() > 0
}

// Clone returns a deep copy of the deposit.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	if d.TotalDeposited != nil {
		clone.TotalDeposited = new(big.Int).Set(d.TotalDeposited)
	}
	if d.RemainingBalance != nil {
		clone.RemainingBalance = new(big.Int).Set(d.RemainingBalance)
	}
	if d.RatePerSecond != nil {
		clone.RatePerSecond = new(big.Int).Set(d.RatePerSecond)
	}
	return &clone
}
