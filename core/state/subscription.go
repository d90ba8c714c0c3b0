package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"fanvault/native/ledger"
)

func depositKey(payer [20]byte, payee [20]byte) []byte {
	buf := make([]byte, len(depositPrefix)+len(payer)+len(payee))
	copy(buf, depositPrefix)
	copy(buf[len(depositPrefix):], payer[:])
	copy(buf[len(depositPrefix)+len(payer):], payee[:])
	return ethcrypto.Keccak256(buf)
}

type storedDeposit struct {
	Payer            [20]byte
	Payee            [20]byte
	TotalDeposited   *big.Int
	RemainingBalance *big.Int
	RatePerSecond    *big.Int
	LastSettledAt    *big.Int
	OpenedAt         *big.Int
}

func newStoredDeposit(d *ledger.Deposit) *storedDeposit {
	if d == nil {
		return nil
	}
	setOrZero := func(v *big.Int) *big.Int {
		if v == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(v)
	}
	return &storedDeposit{
		Payer:            d.Payer,
		Payee:            d.Payee,
		TotalDeposited:   setOrZero(d.TotalDeposited),
		RemainingBalance: setOrZero(d.RemainingBalance),
		RatePerSecond:    setOrZero(d.RatePerSecond),
		LastSettledAt:    big.NewInt(d.LastSettledAt),
		OpenedAt:         big.NewInt(d.OpenedAt),
	}
}

func (s *storedDeposit) toDeposit() *ledger.Deposit {
	if s == nil {
		return nil
	}
	setOrZero := func(v *big.Int) *big.Int {
		if v == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(v)
	}
	out := &ledger.Deposit{
		Payer:            s.Payer,
		Payee:            s.Payee,
		TotalDeposited:   setOrZero(s.TotalDeposited),
		RemainingBalance: setOrZero(s.RemainingBalance),
		RatePerSecond:    setOrZero(s.RatePerSecond),
	}
	if s.LastSettledAt != nil {
		out.LastSettledAt = s.LastSettledAt.Int64()
	}
	if s.OpenedAt != nil {
		out.OpenedAt = s.OpenedAt.Int64()
	}
	return out
}

// SubscriptionGet loads the deposit record for the (payer, payee) pair.
func (m *Manager) SubscriptionGet(payer [20]byte, payee [20]byte) (*ledger.Deposit, bool, error) {
	data, err := m.db.Get(depositKey(payer, payee))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedDeposit)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode deposit: %w", err)
	}
	return stored.toDeposit(), true, nil
}

// SubscriptionPut writes the deposit record for the pair.
func (m *Manager) SubscriptionPut(deposit *ledger.Deposit) error {
	if deposit == nil {
		return fmt.Errorf("state: nil deposit")
	}
	encoded, err := rlp.EncodeToBytes(newStoredDeposit(deposit))
	if err != nil {
		return err
	}
	return m.db.Put(depositKey(deposit.Payer, deposit.Payee), encoded)
}
