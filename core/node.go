package core

import (
	"log/slog"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"fanvault/core/events"
	"fanvault/core/state"
	"fanvault/core/types"
	"fanvault/crypto"
	"fanvault/native/ledger"
	"fanvault/native/registry"
	"fanvault/observability"
	"fanvault/storage"
)

// eventTailSize bounds the in-memory tail of recent events served over RPC.
const eventTailSize = 256

// CustodyVault returns the module account holding all deposited funds while
// they vest. The address is derived from a fixed label so every node agrees
// on it without configuration.
func CustodyVault() [20]byte {
	hash := ethcrypto.Keccak256([]byte("fanvault/module/custody-vault"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// Node owns the registry and ledger engines and serializes every operation.
// Each invocation runs to completion with exclusive access to state before
// the next is admitted, so vesting math replays deterministically from an
// ordered operation log.
type Node struct {
	mu       sync.Mutex
	state    *state.Manager
	registry *registry.Engine
	ledger   *ledger.Engine
	logger   *slog.Logger

	eventMu sync.Mutex
	tail    []*types.Event
}

type eventWithPayload interface {
	Event() *types.Event
}

type nodeEventEmitter struct {
	node *Node
}

func (e nodeEventEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	e.node.appendEvent(event)
}

// NewNode constructs a node over the provided database.
func NewNode(db storage.Database, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		state:  state.NewManager(db),
		logger: logger,
	}

	regEngine := registry.NewEngine()
	regEngine.SetState(n.state)
	regEngine.SetEmitter(nodeEventEmitter{node: n})
	n.registry = regEngine

	ledgerEngine := ledger.NewEngine()
	ledgerEngine.SetState(n.state)
	ledgerEngine.SetRegistry(regEngine)
	ledgerEngine.SetEmitter(nodeEventEmitter{node: n})
	ledgerEngine.SetVault(CustodyVault())
	n.ledger = ledgerEngine

	return n
}

// SetNowFunc overrides both engines' time source for deterministic testing.
// The supplied function must return Unix milliseconds.
func (n *Node) SetNowFunc(now func() int64) {
	n.registry.SetNowFunc(now)
	n.ledger.SetNowFunc(now)
}

func (n *Node) appendEvent(evt *types.Event) {
	n.eventMu.Lock()
	n.tail = append(n.tail, evt)
	if len(n.tail) > eventTailSize {
		n.tail = n.tail[len(n.tail)-eventTailSize:]
	}
	n.eventMu.Unlock()
	observability.Events().Record(evt.Type)
	n.logger.Info("event emitted", slog.String("type", evt.Type), slog.Any("attributes", evt.Attributes))
}

// RecentEvents returns up to limit of the most recent events, oldest first.
func (n *Node) RecentEvents(limit int) []*types.Event {
	n.eventMu.Lock()
	defer n.eventMu.Unlock()
	if limit <= 0 || limit > len(n.tail) {
		limit = len(n.tail)
	}
	out := make([]*types.Event, limit)
	copy(out, n.tail[len(n.tail)-limit:])
	return out
}

// ApplyGenesis credits the configured initial balances. Accounts that already
// exist are left untouched so a restart never double-funds.
func (n *Node) ApplyGenesis(alloc map[string]*big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for encoded, amount := range alloc {
		if amount == nil || amount.Sign() <= 0 {
			continue
		}
		addr, err := crypto.DecodeAddress(encoded)
		if err != nil {
			return err
		}
		existing, err := n.state.GetAccount(addr.Bytes())
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		account := &types.Account{Balance: new(big.Int).Set(amount)}
		if err := n.state.PutAccount(addr.Bytes(), account); err != nil {
			return err
		}
		n.logger.Info("genesis allocation applied", slog.String("address", encoded), slog.String("amount", amount.String()))
	}
	return nil
}

// Balance returns the spendable balance for the address.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if account == nil || account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

// --- CreatorRegistry operations ---

func (n *Node) CreatorRegister(addr [20]byte, name string) (*registry.Profile, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.Register(addr, name)
}

func (n *Node) CreatorProfile(addr [20]byte) (*registry.Profile, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.Profile(addr)
}

func (n *Node) CreatorIsRegistered(addr [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.IsRegistered(addr)
}

func (n *Node) CreatorPublish(addr [20]byte, uri string) (*registry.Profile, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.PublishContent(addr, uri)
}

// CreatorContent resolves the creator's content reference for the fan. Access
// is gated on the fan holding an active deposit with the creator; the
// decision is delegated to the subscription ledger.
func (n *Node) CreatorContent(creator [20]byte, fan [20]byte) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.ContentFor(creator, fan, n.ledger.HasActiveDeposit)
}

func (n *Node) CreatorList(offset uint64, limit uint64) ([]*registry.Profile, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.List(offset, limit)
}

func (n *Node) CreatorCount() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registry.Count()
}

// --- SubscriptionLedger operations ---

func (n *Node) SubscriptionOpen(payer [20]byte, payee [20]byte, periodAmount *big.Int, amount *big.Int) (*ledger.Deposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Open(payer, payee, periodAmount, amount)
}

func (n *Node) SubscriptionClaim(payer [20]byte, payee [20]byte) (*big.Int, *ledger.Deposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Claim(payer, payee)
}

func (n *Node) SubscriptionCancel(payer [20]byte, payee [20]byte) (*big.Int, *big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Cancel(payer, payee)
}

func (n *Node) SubscriptionGet(payer [20]byte, payee [20]byte) (*ledger.Deposit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.Get(payer, payee)
}
