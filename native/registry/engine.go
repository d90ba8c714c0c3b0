package registry

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"fanvault/core/events"
)

var (
	errNilState = errors.New("registry engine: state not configured")
	// ErrAlreadyRegistered is returned when an address attempts a second registration.
	ErrAlreadyRegistered = errors.New("registry engine: creator already registered")
	// ErrNotFound is returned when no profile exists for the requested address.
	ErrNotFound = errors.New("registry engine: creator not found")
	// ErrSubscriptionRequired is returned when a fan without an active deposit
	// requests gated content.
	ErrSubscriptionRequired = errors.New("registry engine: active subscription required")
	errNameRequired         = errors.New("registry engine: display name required")
	errContentURIRequired   = errors.New("registry engine: content uri required")
)

type engineState interface {
	RegistryProfileGet(addr [20]byte) (*Profile, bool, error)
	RegistryProfilePut(profile *Profile) error
	RegistryIndexAppend(addr [20]byte) error
	RegistryIndex() ([][20]byte, error)
	RegistryCount() (uint64, error)
}

// AccessPredicate answers whether the fan currently holds an active deposit
// with the creator. The decision lives in the subscription ledger; the
// registry only applies it.
type AccessPredicate func(creator [20]byte, fan [20]byte) (bool, error)

// Engine wires creator registration bookkeeping with persistence and event
// emission. All time-based logic lives in the subscription ledger; the
// registry is a leaf component.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a registry engine with default dependencies.
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

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().UnixMilli()
	}
	return e.nowFn()
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Register creates a one-time profile for the address. Registration never
// overwrites: a second attempt fails with ErrAlreadyRegistered and leaves the
// original profile untouched.
func (e *Engine) Register(addr [20]byte, name string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errNameRequired
	}
	if _, ok, err := e.state.RegistryProfileGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyRegistered
	}
	profile := &Profile{
		Addr:         addr,
		Name:         trimmed,
		TotalEarned:  big.NewInt(0),
		RegisteredAt: e.now(),
	}
	if err := e.state.RegistryProfilePut(profile); err != nil {
		return nil, err
	}
	if err := e.state.RegistryIndexAppend(addr); err != nil {
		return nil, err
	}
	e.emitter.Emit(WrapEvent(CreatorRegisteredEvent(hexAddr(addr), trimmed)))
	return profile.Clone(), nil
}

// IsRegistered reports whether a profile exists for the address.
func (e *Engine) IsRegistered(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.state.RegistryProfileGet(addr)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Profile returns the record for the address.
func (e *Engine) Profile(addr [20]byte) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	profile, ok, err := e.state.RegistryProfileGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || profile == nil {
		return nil, ErrNotFound
	}
	return profile.Clone(), nil
}

// PublishContent overwrites the creator's content reference. Only registered
// creators may publish; caller identity is enforced one layer up.
func (e *Engine) PublishContent(addr [20]byte, uri string) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" {
		return nil, errContentURIRequired
	}
	profile, ok, err := e.state.RegistryProfileGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || profile == nil {
		return nil, ErrNotFound
	}
	profile.ContentURI = trimmed
	if err := e.state.RegistryProfilePut(profile); err != nil {
		return nil, err
	}
	e.emitter.Emit(WrapEvent(ContentPublishedEvent(hexAddr(addr), trimmed)))
	return profile.Clone(), nil
}

// CreditEarnings adds vested funds to the creator's lifetime total. It is the
// subscription ledger's private entry point and the only writer of
// TotalEarned. A missing profile is a silent no-op: deposits validate the
// payee at creation, so the record should always exist.
func (e *Engine) CreditEarnings(addr [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	profile, ok, err := e.state.RegistryProfileGet(addr)
	if err != nil {
		return err
	}
	if !ok || profile == nil {
		return nil
	}
	if profile.TotalEarned == nil {
		profile.TotalEarned = big.NewInt(0)
	}
	profile.TotalEarned = new(big.Int).Add(profile.TotalEarned, amount)
	return e.state.RegistryProfilePut(profile)
}

// ContentFor gates the creator's content reference behind the supplied access
// predicate. The fan without access receives ErrSubscriptionRequired even if
// content exists; a creator without published content reads as ErrNotFound.
func (e *Engine) ContentFor(creator [20]byte, fan [20]byte, hasAccess AccessPredicate) (string, error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	profile, ok, err := e.state.RegistryProfileGet(creator)
	if err != nil {
		return "", err
	}
	if !ok || profile == nil {
		return "", ErrNotFound
	}
	if hasAccess == nil {
		return "", ErrSubscriptionRequired
	}
	allowed, err := hasAccess(creator, fan)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrSubscriptionRequired
	}
	if !profile.HasContent() {
		return "", ErrNotFound
	}
	return profile.ContentURI, nil
}

// List returns a page of registered profiles in registration order.
func (e *Engine) List(offset uint64, limit uint64) ([]*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	index, err := e.state.RegistryIndex()
	if err != nil {
		return nil, err
	}
	if offset >= uint64(len(index)) {
		return []*Profile{}, nil
	}
	end := uint64(len(index))
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]*Profile, 0, end-offset)
	for _, addr := range index[offset:end] {
		profile, ok, err := e.state.RegistryProfileGet(addr)
		if err != nil {
			return nil, err
		}
		if !ok || profile == nil {
			continue
		}
		page = append(page, profile.Clone())
	}
	return page, nil
}

// Count returns the number of registered creators.
func (e *Engine) Count() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.RegistryCount()
}
