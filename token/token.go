/*
Package token implements the fungible token engine.

Engine is the only component mutating account balances (package ledger) and
allowances (package allowance). It validates inputs, serializes operations
touching the same accounts or allowance pairs, applies every operation
atomically and reports committed changes to the event sink.

All amounts are raw integer units already scaled by 10^decimals.
*/
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/common"
	"github.com/nspcc-dev/token-ledger/event"
	"github.com/nspcc-dev/token-ledger/internal/keylock"
	"github.com/nspcc-dev/token-ledger/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// MaxDecimals is the maximum supported token precision.
	MaxDecimals = 18

	// ProtocolVersion is the version of the token operation set.
	ProtocolVersion = "T1.0"
)

// Errors returned by Engine, see common package for details.
var (
	ErrInvalidAmount         = common.ErrInvalidAmount
	ErrInsufficientFunds     = common.ErrInsufficientFunds
	ErrInsufficientAllowance = common.ErrInsufficientAllowance
	ErrInvalidRecipient      = common.ErrInvalidRecipient
	ErrAlreadyInitialized    = common.ErrAlreadyInitialized
	ErrNotInitialized        = common.ErrNotInitialized
	ErrOperationDisabled     = common.ErrOperationDisabled
)

// Token is the complete set of token operations.
type Token interface {
	// Initialize issues supply*10^decimals tokens to the issuer and sets token
	// name and symbol. It can be called only once.
	Initialize(issuer util.Uint160, supply *big.Int, name, symbol string) error

	Name() string
	Symbol() string
	Decimals() int
	TotalSupply() *big.Int
	BalanceOf(acc util.Uint160) *big.Int
	// Allowance returns amount delegate can transfer from owner's account.
	Allowance(owner, delegate util.Uint160) *big.Int

	// Transfer moves amount from sender to recipient.
	Transfer(sender, to util.Uint160, amount *big.Int) error
	// Mint creates tokens on caller's account and returns new total supply.
	Mint(caller util.Uint160, amount *big.Int) (*big.Int, error)
	// Burn destroys tokens on caller's account and returns new total supply.
	Burn(caller util.Uint160, amount *big.Int) (*big.Int, error)
	// Approve sets allowance of the delegate overwriting the previous one.
	Approve(owner, delegate util.Uint160, amount *big.Int) error
	// UpdateApprove changes allowance of the delegate by delta and returns
	// the resulting allowance.
	UpdateApprove(owner, delegate util.Uint160, delta *big.Int) (*big.Int, error)
	// TransferFrom moves amount from one account to another on behalf of the
	// caller spending caller's allowance.
	TransferFrom(caller, from, to util.Uint160, amount *big.Int) error
}

// Config groups token parameters fixed at construction.
type Config struct {
	// Token precision, [0, MaxDecimals].
	Decimals int

	// Pass events to the sink.
	EmitEvents bool

	// Reject Mint and Burn calls with ErrOperationDisabled.
	DisableMint bool
	DisableBurn bool

	// Accounts which can't receive tokens in addition to account.Zero.
	Reserved []util.Uint160
}

// Prm groups Engine construction parameters.
type Prm struct {
	Config Config

	// Optional logger, no-op by default.
	Logger *zap.Logger

	// Optional event receiver.
	Sink event.Sink

	// Optional metrics.
	Metrics *metrics.Collector
}

// Engine implements Token over an in-memory store.
type Engine struct {
	cfg      Config
	reserved map[util.Uint160]struct{}

	log     *zap.Logger
	sink    event.Sink
	metrics *metrics.Collector

	// held for reading by regular operations and for writing by the ones
	// working with the whole state
	mtx   sync.RWMutex
	store *storage.MemoryStore
	locks *keylock.Locker

	initialized atomic.Bool
	meta        metadata

	seq atomic.Uint64
}

var _ Token = (*Engine)(nil)

// New returns uninitialized Engine.
func New(prm Prm) (*Engine, error) {
	if prm.Config.Decimals < 0 || prm.Config.Decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals %d out of [0, %d] range", prm.Config.Decimals, MaxDecimals)
	}

	e := &Engine{
		cfg:      prm.Config,
		reserved: make(map[util.Uint160]struct{}, len(prm.Config.Reserved)+1),
		log:      prm.Logger,
		sink:     prm.Sink,
		metrics:  prm.Metrics,
		store:    storage.NewMemoryStore(),
		locks:    keylock.New(keylock.DefaultStripes),
	}

	if e.log == nil {
		e.log = zap.NewNop()
	}

	e.reserved[account.Zero] = struct{}{}
	for _, acc := range prm.Config.Reserved {
		e.reserved[acc] = struct{}{}
	}

	return e, nil
}

// Name returns token name, empty before initialization.
func (e *Engine) Name() string {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.meta.name
}

// Symbol returns token symbol, empty before initialization.
func (e *Engine) Symbol() string {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.meta.symbol
}

// Decimals returns token precision.
func (e *Engine) Decimals() int {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.cfg.Decimals
}

// TotalSupply returns amount of tokens in circulation.
func (e *Engine) TotalSupply() *big.Int {
	return e.view().ledger.TotalSupply()
}

// BalanceOf returns balance of the account, zero for unknown ones.
func (e *Engine) BalanceOf(acc util.Uint160) *big.Int {
	return e.view().ledger.BalanceOf(acc)
}

// Allowance returns amount delegate can spend from owner's account.
func (e *Engine) Allowance(owner, delegate util.Uint160) *big.Int {
	return e.view().allowances.Get(owner, delegate)
}

// Info describes the token.
type Info struct {
	Name        string
	Symbol      string
	Decimals    int
	TotalSupply *big.Int
	// Storage layout version.
	Version int
	// Token protocol version, see ProtocolVersion.
	Protocol string
}

// Info returns token description.
func (e *Engine) Info() Info {
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.info()
}

func (e *Engine) info() Info {
	return Info{
		Name:        e.meta.name,
		Symbol:      e.meta.symbol,
		Decimals:    e.cfg.Decimals,
		TotalSupply: e.view().ledger.TotalSupply(),
		Version:     e.meta.version,
		Protocol:    ProtocolVersion,
	}
}

func (e *Engine) isReserved(acc util.Uint160) bool {
	_, ok := e.reserved[acc]
	return ok
}

func (e *Engine) checkRecipient(to util.Uint160) error {
	if e.isReserved(to) {
		return fmt.Errorf("%w: %s is reserved", ErrInvalidRecipient, account.String(to))
	}
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: missing amount", ErrInvalidAmount)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	return nil
}
