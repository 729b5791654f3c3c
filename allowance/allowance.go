/*
Package allowance implements delegated spending rights.

Table keeps amounts every delegate is allowed to transfer from the owner's
balance. Missing items are equivalent to zero allowance, zeroed items are
removed from the store.
*/
package allowance

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/common"
)

// Prefix is the storage prefix of allowance items.
const Prefix = 'l'

// Table provides allowance operations over the store.
type Table struct {
	st common.Store
}

// New returns Table working with the given store.
func New(st common.Store) *Table {
	return &Table{st: st}
}

// Key returns storage key of the allowance given by owner to delegate.
func Key(owner, delegate util.Uint160) []byte {
	key := make([]byte, 0, 1+2*util.Uint160Size)
	key = append(key, Prefix)
	key = append(key, owner.BytesBE()...)
	return append(key, delegate.BytesBE()...)
}

// Get returns amount delegate is allowed to spend on behalf of owner.
func (t *Table) Get(owner, delegate util.Uint160) *big.Int {
	return common.GetInt(t.st, Key(owner, delegate))
}

// Set overwrites allowance with the given amount regardless of the current
// value.
func (t *Table) Set(owner, delegate util.Uint160, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: allowance %v", common.ErrInvalidAmount, amount)
	}

	common.PutInt(t.st, Key(owner, delegate), amount)
	return nil
}

// Adjust adds delta (which may be negative) to the allowance and returns the
// resulting value.
func (t *Table) Adjust(owner, delegate util.Uint160, delta *big.Int) (*big.Int, error) {
	if delta == nil {
		return nil, fmt.Errorf("%w: missing delta", common.ErrInvalidAmount)
	}

	res := new(big.Int).Add(t.Get(owner, delegate), delta)
	if res.Sign() < 0 {
		return nil, fmt.Errorf("%w: allowance would go negative (%s)", common.ErrInvalidAmount, res)
	}

	common.PutInt(t.st, Key(owner, delegate), res)
	return res, nil
}

// Consume decreases the allowance by amount which must not exceed it.
func (t *Table) Consume(owner, delegate util.Uint160, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: spending %v", common.ErrInvalidAmount, amount)
	}

	cur := t.Get(owner, delegate)
	if cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowed %s, requested %s", common.ErrInsufficientAllowance, cur, amount)
	}

	common.PutInt(t.st, Key(owner, delegate), cur.Sub(cur, amount))
	return nil
}
