package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fanvault/core/events"
	"fanvault/core/types"
)

var (
	errNilState    = errors.New("ledger engine: state not configured")
	errNilRegistry = errors.New("ledger engine: registry not configured")
	errVaultNotSet = errors.New("ledger engine: custody vault not configured")
	// ErrPayeeNotFound is returned when opening a deposit against an unregistered creator.
	ErrPayeeNotFound = errors.New("ledger engine: payee not registered")
	// ErrAlreadyActive is returned when the (payer, payee) pair already has a live deposit.
	ErrAlreadyActive = errors.New("ledger engine: deposit already active")
	// ErrInsufficientPayment is returned when the deposited amount does not
	// cover at least one period at the requested rate.
	ErrInsufficientPayment = errors.New("ledger engine: deposit below period amount")
	// ErrInsufficientFunds is returned when the payer's account cannot fund the deposit.
	ErrInsufficientFunds = errors.New("ledger engine: insufficient balance")
	// ErrNoActiveDeposit is returned when claiming or cancelling a pair with no live deposit.
	ErrNoActiveDeposit = errors.New("ledger engine: no active deposit")
	// ErrTransferFailed is returned when funds cannot be moved out of custody.
	ErrTransferFailed = errors.New("ledger engine: transfer failed")
	errInvalidAmount  = errors.New("ledger engine: amount must be positive")
)

type engineState interface {
	SubscriptionGet(payer [20]byte, payee [20]byte) (*Deposit, bool, error)
	SubscriptionPut(deposit *Deposit) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// payeeRegistry is the narrow slice of the creator registry the ledger needs:
// existence checks at deposit creation and the lifetime-earnings accumulator
// on settlement. The ledger never reaches deeper into registry state.
type payeeRegistry interface {
	IsRegistered(addr [20]byte) (bool, error)
	CreditEarnings(addr [20]byte, amount *big.Int) error
}

// Engine owns all deposit, vesting, claim and cancel logic. Deposited funds
// are held by a custody vault account; every operation either completes fully
// or leaves no visible mutation.
type Engine struct {
	state    engineState
	registry payeeRegistry
	emitter  events.Emitter
	nowFn    func() int64
	vault    [20]byte
}

// NewEngine constructs a ledger engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().UnixMilli()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the creator registry collaborator.
func (e *Engine) SetRegistry(registry payeeRegistry) { e.registry = registry }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing. The
// supplied function must return Unix milliseconds.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().UnixMilli() }
		return
	}
	e.nowFn = now
}

// SetVault configures the custody account holding deposited funds.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().UnixMilli()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	if isZeroAddress(e.vault) {
		return errVaultNotSet
	}
	return nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// transfer moves amount from one account to the other, writing both back.
// On a failed second write the first account is restored so no partial move
// is ever visible.
func (e *Engine) transfer(from [20]byte, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrTransferFailed
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	originalFrom := fromAcc.Clone()
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to[:], toAcc); err != nil {
		if restoreErr := e.state.PutAccount(from[:], originalFrom); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("ledger engine: rollback debit: %w", restoreErr))
		}
		return err
	}
	return nil
}

// Open creates a streaming deposit from payer to payee. The payee must be a
// registered creator, the pair must not already be streaming, and the
// deposited amount must cover at least one full period. A cancelled (inert)
// record does not block a fresh deposit: it is fully reset.
func (e *Engine) Open(payer [20]byte, payee [20]byte, periodAmount *big.Int, amount *big.Int) (*Deposit, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if periodAmount == nil || periodAmount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	registered, err := e.registry.IsRegistered(payee)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrPayeeNotFound
	}
	if existing, ok, err := e.state.SubscriptionGet(payer, payee); err != nil {
		return nil, err
	} else if ok && existing.Active() {
		return nil, ErrAlreadyActive
	}
	if amount.Cmp(periodAmount) < 0 {
		return nil, ErrInsufficientPayment
	}

	payerAcc, err := e.state.GetAccount(payer[:])
	if err != nil {
		return nil, err
	}
	payerAcc = ensureAccount(payerAcc)
	if payerAcc.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := e.transfer(payer, e.vault, amount); err != nil {
		return nil, err
	}

	now := e.now()
	deposit := &Deposit{
		Payer:            payer,
		Payee:            payee,
		TotalDeposited:   new(big.Int).Set(amount),
		RemainingBalance: new(big.Int).Set(amount),
		RatePerSecond:    ratePerSecond(periodAmount),
		LastSettledAt:    now,
		OpenedAt:         now,
	}
	if err := e.state.SubscriptionPut(deposit); err != nil {
		if restoreErr := e.transfer(e.vault, payer, amount); restoreErr != nil {
			return nil, errors.Join(err, fmt.Errorf("ledger engine: rollback deposit: %w", restoreErr))
		}
		return nil, err
	}
	e.emitter.Emit(WrapEvent(SubscriptionOpenedEvent(hexAddr(payer), hexAddr(payee), amount.String(), deposit.RatePerSecond.String())))
	return deposit.Clone(), nil
}

// Claim settles vested funds from the deposit to the payee. Whole seconds
// elapsed since the last settlement vest at the fixed per-second rate, capped
// at the remaining balance. A zero claimable amount is a valid no-op that
// neither mutates state nor advances the settlement clock, so sub-second time
// keeps accumulating for the next attempt.
func (e *Engine) Claim(payer [20]byte, payee [20]byte) (*big.Int, *Deposit, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	deposit, ok, err := e.state.SubscriptionGet(payer, payee)
	if err != nil {
		return nil, nil, err
	}
	if !ok || deposit == nil {
		return nil, nil, ErrNoActiveDeposit
	}
	if !deposit.Active() {
		// Cancelled record retained for audit; nothing left to stream.
		return big.NewInt(0), deposit.Clone(), nil
	}

	now := e.now()
	vested := vestedAmount(deposit.RatePerSecond, deposit.LastSettledAt, now)
	claimable := minBig(vested, deposit.RemainingBalance)
	if claimable.Sign() == 0 {
		return big.NewInt(0), deposit.Clone(), nil
	}

	if err := e.settle(deposit, payee, claimable, now); err != nil {
		return nil, nil, err
	}
	e.emitter.Emit(WrapEvent(EarningsClaimedEvent(hexAddr(payer), hexAddr(payee), claimable.String(), deposit.RemainingBalance.String())))
	return claimable, deposit.Clone(), nil
}

// settle moves claimable out of custody to the payee, credits lifetime
// earnings, advances the settlement clock and persists the updated record.
// The funds move first; any later failure restores the transfer so the
// operation stays all-or-nothing.
func (e *Engine) settle(deposit *Deposit, payee [20]byte, claimable *big.Int, now int64) error {
	if err := e.transfer(e.vault, payee, claimable); err != nil {
		return err
	}
	if err := e.registry.CreditEarnings(payee, claimable); err != nil {
		if restoreErr := e.transfer(payee, e.vault, claimable); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("ledger engine: rollback settlement: %w", restoreErr))
		}
		return err
	}
	remaining := new(big.Int).Sub(deposit.RemainingBalance, claimable)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	updated := deposit.Clone()
	updated.RemainingBalance = remaining
	updated.LastSettledAt = now
	if err := e.state.SubscriptionPut(updated); err != nil {
		if restoreErr := e.transfer(payee, e.vault, claimable); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("ledger engine: rollback settlement: %w", restoreErr))
		}
		return err
	}
	deposit.RemainingBalance = remaining
	deposit.LastSettledAt = now
	return nil
}

// Cancel ends the deposit. Vesting accrued since the last settlement is paid
// to the payee exactly as a claim would, then the remaining balance is
// refunded to the payer. The sum of all claims, the final settlement and the
// refund equals the original deposit, and truncation dust returns with the
// refund rather than stranding in custody. The record becomes inert with its
// timestamps retained for audit.
func (e *Engine) Cancel(payer [20]byte, payee [20]byte) (*big.Int, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	deposit, ok, err := e.state.SubscriptionGet(payer, payee)
	if err != nil {
		return nil, nil, err
	}
	if !ok || deposit == nil || !deposit.Active() {
		return nil, nil, ErrNoActiveDeposit
	}

	now := e.now()
	vested := vestedAmount(deposit.RatePerSecond, deposit.LastSettledAt, now)
	settled := minBig(vested, deposit.RemainingBalance)
	if settled.Sign() > 0 {
		if err := e.settle(deposit, payee, settled, now); err != nil {
			return nil, nil, err
		}
	}

	refund := new(big.Int).Set(deposit.RemainingBalance)
	if refund.Sign() > 0 {
		if err := e.transfer(e.vault, payer, refund); err != nil {
			return nil, nil, err
		}
	}

	inert := deposit.Clone()
	inert.RemainingBalance = big.NewInt(0)
	inert.RatePerSecond = big.NewInt(0)
	inert.LastSettledAt = now
	if err := e.state.SubscriptionPut(inert); err != nil {
		if refund.Sign() > 0 {
			if restoreErr := e.transfer(payer, e.vault, refund); restoreErr != nil {
				return nil, nil, errors.Join(err, fmt.Errorf("ledger engine: rollback refund: %w", restoreErr))
			}
		}
		return nil, nil, err
	}
	e.emitter.Emit(WrapEvent(SubscriptionCancelledEvent(hexAddr(payer), hexAddr(payee), settled.String(), refund.String())))
	return refund, settled, nil
}

// Get returns a read-only snapshot of the deposit for the pair.
func (e *Engine) Get(payer [20]byte, payee [20]byte) (*Deposit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	deposit, ok, err := e.state.SubscriptionGet(payer, payee)
	if err != nil {
		return nil, err
	}
	if !ok || deposit == nil {
		return nil, ErrNoActiveDeposit
	}
	return deposit.Clone(), nil
}

// HasActiveDeposit reports whether the pair is currently streaming. It is the
// access predicate handed to the creator registry for content gating.
func (e *Engine) HasActiveDeposit(payee [20]byte, payer [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	deposit, ok, err := e.state.SubscriptionGet(payer, payee)
	if err != nil {
		return false, err
	}
	return ok && deposit.Active(), nil
}
