package token

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/allowance"
	"github.com/nspcc-dev/token-ledger/event"
	"github.com/nspcc-dev/token-ledger/ledger"
	"go.uber.org/zap"
)

// Operation names used in logs and metrics.
const (
	opInitialize    = "initialize"
	opTransfer      = "transfer"
	opMint          = "mint"
	opBurn          = "burn"
	opApprove       = "approve"
	opUpdateApprove = "update_approve"
	opTransferFrom  = "transfer_from"
)

// state is a set of tables over a single store.
type state struct {
	ledger     *ledger.Ledger
	allowances *allowance.Table
}

func newState(st *storage.MemCachedStore) state {
	return state{
		ledger:     ledger.New(st),
		allowances: allowance.New(st),
	}
}

// view returns read-only state. Items are committed to the store atomically,
// so single-key reads never see a partially applied operation.
func (e *Engine) view() state {
	return newState(storage.NewMemCachedStore(e.store))
}

// exec runs an operation: checks arguments, locks keys, applies f to a private
// copy of the state and commits it if f succeeds. The event returned by f is
// delivered after the commit with all locks released, nil event means no-op.
func (e *Engine) exec(op string, check func() error, keys [][]byte, f func(state) (*event.Event, error)) (err error) {
	defer func() {
		e.metrics.ObserveOperation(op, err)
		if err != nil {
			e.log.Debug("operation failed", zap.String("op", op), zap.Error(err))
		}
	}()

	if err = check(); err != nil {
		return err
	}

	ev, err := e.commit(op, keys, f)
	if err != nil || ev == nil {
		return err
	}

	e.deliver(ev)

	return nil
}

func (e *Engine) commit(op string, keys [][]byte, f func(state) (*event.Event, error)) (*event.Event, error) {
	e.mtx.RLock()
	defer e.mtx.RUnlock()

	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}

	unlock := e.locks.Lock(keys...)
	defer unlock()

	batch := storage.NewMemCachedStore(e.store)

	ev, err := f(newState(batch))
	if err != nil || ev == nil {
		return nil, err
	}

	if _, err = batch.Persist(); err != nil {
		return nil, fmt.Errorf("persist %s: %w", op, err)
	}

	e.stamp(ev)

	return ev, nil
}

// stamp numbers the committed event. It is called with the keys of the
// operation locked, so events of the same account or allowance pair have
// increasing Seq in commit order.
func (e *Engine) stamp(ev *event.Event) {
	ev.ID = uuid.New()
	ev.Seq = e.seq.Inc()

	if ev.TotalSupply != nil {
		e.metrics.SetSupply(ev.TotalSupply)
	}
}

// deliver passes the event to the sink. It must be called without engine
// locks held, so a slow sink never stalls other operations.
func (e *Engine) deliver(ev *event.Event) {
	if !e.cfg.EmitEvents || e.sink == nil {
		return
	}

	e.sink.Notify(*ev)
	e.metrics.IncEvents()
}

// Initialize implements Token. Issuance is reported as Mint event.
func (e *Engine) Initialize(issuer util.Uint160, supply *big.Int, name, symbol string) (err error) {
	defer func() { e.metrics.ObserveOperation(opInitialize, err) }()

	ev, err := e.initialize(issuer, supply, name, symbol)
	if err != nil {
		return err
	}

	e.deliver(ev)

	return nil
}

func (e *Engine) initialize(issuer util.Uint160, supply *big.Int, name, symbol string) (*event.Event, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if e.initialized.Load() {
		return nil, ErrAlreadyInitialized
	}

	if err := checkAmount(supply); err != nil {
		return nil, fmt.Errorf("initial supply: %w", err)
	}

	if err := e.checkRecipient(issuer); err != nil {
		return nil, fmt.Errorf("issuer: %w", err)
	}

	var (
		batch  = storage.NewMemCachedStore(e.store)
		st     = newState(batch)
		amount = new(big.Int).Mul(supply, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(e.cfg.Decimals)), nil))
		meta   = metadata{
			name:     name,
			symbol:   symbol,
			decimals: e.cfg.Decimals,
			version:  currentVersion(),
		}
	)

	if err := st.ledger.Credit(issuer, amount); err != nil {
		return nil, err
	}

	if err := meta.put(batch); err != nil {
		return nil, err
	}

	if _, err := batch.Persist(); err != nil {
		return nil, fmt.Errorf("persist %s: %w", opInitialize, err)
	}

	e.meta = meta
	e.initialized.Store(true)

	e.log.Info("token initialized",
		zap.String("name", name),
		zap.String("symbol", symbol),
		zap.Int("decimals", e.cfg.Decimals),
		zap.String("issuer", account.String(issuer)),
		zap.Stringer("supply", amount))

	ev := &event.Event{
		Kind:        event.Mint,
		To:          issuer,
		Amount:      amount,
		ToBalance:   st.ledger.BalanceOf(issuer),
		TotalSupply: st.ledger.TotalSupply(),
	}

	e.stamp(ev)

	return ev, nil
}

// Transfer implements Token. Transfer to oneself succeeds if balance is
// sufficient and changes nothing.
func (e *Engine) Transfer(sender, to util.Uint160, amount *big.Int) error {
	check := func() error {
		if err := checkAmount(amount); err != nil {
			return err
		}
		return e.checkRecipient(to)
	}

	return e.exec(opTransfer, check, [][]byte{ledger.AccountKey(sender), ledger.AccountKey(to)}, func(st state) (*event.Event, error) {
		if amount.Sign() == 0 {
			return nil, nil
		}

		if err := st.ledger.Move(sender, to, amount); err != nil {
			return nil, err
		}

		return &event.Event{
			Kind:        event.Transfer,
			From:        sender,
			To:          to,
			Amount:      new(big.Int).Set(amount),
			FromBalance: st.ledger.BalanceOf(sender),
			ToBalance:   st.ledger.BalanceOf(to),
		}, nil
	})
}

// Mint implements Token.
func (e *Engine) Mint(caller util.Uint160, amount *big.Int) (*big.Int, error) {
	check := func() error {
		if e.cfg.DisableMint {
			return fmt.Errorf("%w: mint", ErrOperationDisabled)
		}
		if err := checkAmount(amount); err != nil {
			return err
		}
		return e.checkRecipient(caller)
	}

	var supply *big.Int

	err := e.exec(opMint, check, [][]byte{ledger.AccountKey(caller), ledger.SupplyKey()}, func(st state) (*event.Event, error) {
		if amount.Sign() == 0 {
			supply = st.ledger.TotalSupply()
			return nil, nil
		}

		if err := st.ledger.Credit(caller, amount); err != nil {
			return nil, err
		}

		supply = st.ledger.TotalSupply()

		return &event.Event{
			Kind:        event.Mint,
			To:          caller,
			Amount:      new(big.Int).Set(amount),
			ToBalance:   st.ledger.BalanceOf(caller),
			TotalSupply: supply,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return supply, nil
}

// Burn implements Token.
func (e *Engine) Burn(caller util.Uint160, amount *big.Int) (*big.Int, error) {
	check := func() error {
		if e.cfg.DisableBurn {
			return fmt.Errorf("%w: burn", ErrOperationDisabled)
		}
		return checkAmount(amount)
	}

	var supply *big.Int

	err := e.exec(opBurn, check, [][]byte{ledger.AccountKey(caller), ledger.SupplyKey()}, func(st state) (*event.Event, error) {
		if amount.Sign() == 0 {
			supply = st.ledger.TotalSupply()
			return nil, nil
		}

		if err := st.ledger.Debit(caller, amount); err != nil {
			return nil, err
		}

		supply = st.ledger.TotalSupply()

		return &event.Event{
			Kind:        event.Burn,
			From:        caller,
			Amount:      new(big.Int).Set(amount),
			FromBalance: st.ledger.BalanceOf(caller),
			TotalSupply: supply,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return supply, nil
}

// Approve implements Token. It overwrites the previous allowance, so the
// delegate may spend both old and new amounts if it transacts in between.
// Use UpdateApprove to change allowances granted to untrusted delegates.
func (e *Engine) Approve(owner, delegate util.Uint160, amount *big.Int) error {
	check := func() error { return checkAmount(amount) }

	return e.exec(opApprove, check, [][]byte{allowance.Key(owner, delegate)}, func(st state) (*event.Event, error) {
		if err := st.allowances.Set(owner, delegate, amount); err != nil {
			return nil, err
		}

		return &event.Event{
			Kind:   event.Approval,
			From:   owner,
			To:     delegate,
			Amount: new(big.Int).Set(amount),
		}, nil
	})
}

// UpdateApprove implements Token. Negative delta decreases the allowance.
func (e *Engine) UpdateApprove(owner, delegate util.Uint160, delta *big.Int) (*big.Int, error) {
	check := func() error {
		if delta == nil {
			return fmt.Errorf("%w: missing delta", ErrInvalidAmount)
		}
		return nil
	}

	var res *big.Int

	err := e.exec(opUpdateApprove, check, [][]byte{allowance.Key(owner, delegate)}, func(st state) (*event.Event, error) {
		if delta.Sign() == 0 {
			res = st.allowances.Get(owner, delegate)
			return nil, nil
		}

		var err error

		res, err = st.allowances.Adjust(owner, delegate, delta)
		if err != nil {
			return nil, err
		}

		return &event.Event{
			Kind:   event.Approval,
			From:   owner,
			To:     delegate,
			Amount: new(big.Int).Set(res),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// TransferFrom implements Token. Allowance given by the source account to the
// caller is decreased by amount only if the transfer succeeds.
func (e *Engine) TransferFrom(caller, from, to util.Uint160, amount *big.Int) error {
	check := func() error {
		if err := checkAmount(amount); err != nil {
			return err
		}
		return e.checkRecipient(to)
	}

	keys := [][]byte{
		allowance.Key(from, caller),
		ledger.AccountKey(from),
		ledger.AccountKey(to),
	}

	return e.exec(opTransferFrom, check, keys, func(st state) (*event.Event, error) {
		if amount.Sign() == 0 {
			return nil, nil
		}

		if err := st.allowances.Consume(from, caller, amount); err != nil {
			return nil, err
		}

		if err := st.ledger.Move(from, to, amount); err != nil {
			return nil, err
		}

		return &event.Event{
			Kind:        event.Transfer,
			From:        from,
			To:          to,
			Spender:     caller,
			Amount:      new(big.Int).Set(amount),
			FromBalance: st.ledger.BalanceOf(from),
			ToBalance:   st.ledger.BalanceOf(to),
			Allowance:   st.allowances.Get(from, caller),
		}, nil
	})
}
