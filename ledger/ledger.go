/*
Package ledger implements account balances and total supply accounting.

Ledger is a typed view over a key-value store: balances are kept under
'a'-prefixed account keys, total supply under the 'c' key. Every successful
operation keeps total supply equal to the sum of all balances and all balances
non-negative; failed operations don't touch the store.

Ledger is not safe for concurrent use on the same accounts, callers serialize
access to the keys returned by AccountKey and SupplyKey.
*/
package ledger

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/common"
)

const (
	// AccountPrefix is the storage prefix of balance items.
	AccountPrefix = 'a'

	supplyKey = 'c'
)

// Ledger provides balance operations over the store.
type Ledger struct {
	st common.Store
}

// New returns Ledger working with the given store.
func New(st common.Store) *Ledger {
	return &Ledger{st: st}
}

// AccountKey returns storage key of the account balance.
func AccountKey(acc util.Uint160) []byte {
	return append([]byte{AccountPrefix}, acc.BytesBE()...)
}

// SupplyKey returns storage key of the total supply.
func SupplyKey() []byte {
	return []byte{supplyKey}
}

// BalanceOf returns balance of the account, zero for unknown accounts.
func (l *Ledger) BalanceOf(acc util.Uint160) *big.Int {
	return common.GetInt(l.st, AccountKey(acc))
}

// TotalSupply returns current amount of tokens in circulation.
func (l *Ledger) TotalSupply() *big.Int {
	return common.GetInt(l.st, SupplyKey())
}

// Credit increases both account balance and total supply by amount.
func (l *Ledger) Credit(acc util.Uint160, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.add(acc, amount)
	common.PutInt(l.st, SupplyKey(), new(big.Int).Add(l.TotalSupply(), amount))
	return nil
}

// Debit decreases both account balance and total supply by amount. Amount
// must not exceed the balance.
func (l *Ledger) Debit(acc util.Uint160, amount *big.Int) error {
	if err := l.checkDebit(acc, amount); err != nil {
		return err
	}

	l.add(acc, new(big.Int).Neg(amount))
	common.PutInt(l.st, SupplyKey(), new(big.Int).Sub(l.TotalSupply(), amount))
	return nil
}

// Move transfers amount from one account to another, total supply stays the
// same. Moving to the same account only checks the balance.
func (l *Ledger) Move(from, to util.Uint160, amount *big.Int) error {
	if err := l.checkDebit(from, amount); err != nil {
		return err
	}

	if from.Equals(to) {
		return nil
	}

	l.add(from, new(big.Int).Neg(amount))
	l.add(to, amount)
	return nil
}

func (l *Ledger) add(acc util.Uint160, delta *big.Int) {
	key := AccountKey(acc)
	common.PutInt(l.st, key, new(big.Int).Add(common.GetInt(l.st, key), delta))
}

func (l *Ledger) checkDebit(acc util.Uint160, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	if bal := l.BalanceOf(acc); bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, requested %s", common.ErrInsufficientFunds, bal, amount)
	}

	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: missing amount", common.ErrInvalidAmount)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount %s", common.ErrInvalidAmount, amount)
	}
	return nil
}
