package state

import (
	"math/big"
	"testing"

	"fanvault/core/types"
	"fanvault/native/ledger"
	"fanvault/native/registry"
	"fanvault/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr := testAddr(1)

	missing, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get missing account: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for a missing account, got %+v", missing)
	}

	if err := manager.PutAccount(addr[:], &types.Account{Nonce: 7, Balance: big.NewInt(12345)}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Nonce != 7 || loaded.Balance.Int64() != 12345 {
		t.Fatalf("loaded account = %+v", loaded)
	}
}

func TestAccountNilBalanceNormalised(t *testing.T) {
	manager := newTestManager(t)
	addr := testAddr(2)

	if err := manager.PutAccount(addr[:], &types.Account{Nonce: 1}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := manager.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Balance == nil || loaded.Balance.Sign() != 0 {
		t.Fatalf("balance = %v, want zero", loaded.Balance)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr := testAddr(3)

	if _, ok, err := manager.RegistryProfileGet(addr); err != nil || ok {
		t.Fatalf("expected missing profile, got ok=%v err=%v", ok, err)
	}

	profile := &registry.Profile{
		Addr:         addr,
		Name:         "alice",
		ContentURI:   "ipfs://drop",
		TotalEarned:  big.NewInt(987654321),
		RegisteredAt: 1_700_000_000_123,
	}
	if err := manager.RegistryProfilePut(profile); err != nil {
		t.Fatalf("put profile: %v", err)
	}
	loaded, ok, err := manager.RegistryProfileGet(addr)
	if err != nil || !ok {
		t.Fatalf("get profile: ok=%v err=%v", ok, err)
	}
	if loaded.Addr != addr || loaded.Name != "alice" || loaded.ContentURI != "ipfs://drop" {
		t.Fatalf("loaded profile = %+v", loaded)
	}
	if loaded.TotalEarned.Cmp(profile.TotalEarned) != 0 {
		t.Fatalf("totalEarned = %s", loaded.TotalEarned)
	}
	if loaded.RegisteredAt != profile.RegisteredAt {
		t.Fatalf("registeredAt = %d", loaded.RegisteredAt)
	}
}

func TestCreatorIndexOrderAndCount(t *testing.T) {
	manager := newTestManager(t)

	index, err := manager.RegistryIndex()
	if err != nil {
		t.Fatalf("empty index: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(index))
	}

	for i := byte(1); i <= 4; i++ {
		if err := manager.RegistryIndexAppend(testAddr(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	index, err = manager.RegistryIndex()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(index) != 4 {
		t.Fatalf("index length = %d, want 4", len(index))
	}
	for i, addr := range index {
		if addr != testAddr(byte(i+1)) {
			t.Fatalf("index[%d] out of registration order", i)
		}
	}
	count, err := manager.RegistryCount()
	if err != nil || count != 4 {
		t.Fatalf("count = %d err = %v, want 4", count, err)
	}
}

func TestDepositRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	payer, payee := testAddr(5), testAddr(6)

	if _, ok, err := manager.SubscriptionGet(payer, payee); err != nil || ok {
		t.Fatalf("expected missing deposit, got ok=%v err=%v", ok, err)
	}

	deposit := &ledger.Deposit{
		Payer:            payer,
		Payee:            payee,
		TotalDeposited:   big.NewInt(2_592_000_000_000),
		RemainingBalance: big.NewInt(1_000_000_000),
		RatePerSecond:    big.NewInt(1_000_000),
		LastSettledAt:    1_700_000_500_000,
		OpenedAt:         1_700_000_000_000,
	}
	if err := manager.SubscriptionPut(deposit); err != nil {
		t.Fatalf("put deposit: %v", err)
	}
	loaded, ok, err := manager.SubscriptionGet(payer, payee)
	if err != nil || !ok {
		t.Fatalf("get deposit: ok=%v err=%v", ok, err)
	}
	if loaded.Payer != payer || loaded.Payee != payee {
		t.Fatalf("loaded pair mismatch")
	}
	if loaded.TotalDeposited.Cmp(deposit.TotalDeposited) != 0 ||
		loaded.RemainingBalance.Cmp(deposit.RemainingBalance) != 0 ||
		loaded.RatePerSecond.Cmp(deposit.RatePerSecond) != 0 {
		t.Fatalf("loaded amounts = %+v", loaded)
	}
	if loaded.LastSettledAt != deposit.LastSettledAt || loaded.OpenedAt != deposit.OpenedAt {
		t.Fatalf("loaded timestamps = %d / %d", loaded.LastSettledAt, loaded.OpenedAt)
	}

	// The reverse direction of the pair is a distinct record.
	if _, ok, err := manager.SubscriptionGet(payee, payer); err != nil || ok {
		t.Fatalf("reversed pair should be missing, got ok=%v err=%v", ok, err)
	}
}
