package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/allowance"
	"github.com/nspcc-dev/token-ledger/common"
	"github.com/nspcc-dev/token-ledger/ledger"
	"go.uber.org/zap"
)

// ErrCorrupted is returned by Audit and Restore if stored state breaks ledger
// invariants.
var ErrCorrupted = errors.New("inconsistent ledger state")

// storage prefixes in snapshot order
var snapshotPrefixes = []byte{MetadataPrefix, ledger.SupplyKey()[0], ledger.AccountPrefix, allowance.Prefix}

// Snapshot passes all stored items of the initialized engine to f and returns
// token description matching them. Key and value slices can be retained by f.
// Operations are blocked until Snapshot returns, so the items form a
// consistent state. f must not call Engine methods.
func (e *Engine) Snapshot(f func(key, value []byte) error) (Info, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if !e.initialized.Load() {
		return Info{}, ErrNotInitialized
	}

	var err error

	for _, p := range snapshotPrefixes {
		e.store.Seek(storage.SeekRange{Prefix: []byte{p}}, func(k, v []byte) bool {
			err = f(copyBytes(k), copyBytes(v))
			return err == nil
		})
		if err != nil {
			return Info{}, err
		}
	}

	return e.info(), nil
}

// Restore creates an initialized engine from the snapshot items passed to put
// by iterate. Token decimals are taken from the snapshot and override
// prm.Config.Decimals. Restored state is audited before return.
func Restore(prm Prm, iterate func(put func(key, value []byte) error) error) (*Engine, error) {
	// checked against the snapshot metadata below
	prm.Config.Decimals = 0

	e, err := New(prm)
	if err != nil {
		return nil, err
	}

	batch := storage.NewMemCachedStore(e.store)

	err = iterate(func(key, value []byte) error {
		if err := checkItem(key, value); err != nil {
			return err
		}

		batch.Put(copyBytes(key), copyBytes(value))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	meta, err := getMetadata(batch)
	if err != nil {
		return nil, err
	}

	if err = common.CheckVersion(meta.version); err != nil {
		return nil, err
	}

	if meta.decimals < 0 || meta.decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals %d", ErrCorrupted, meta.decimals)
	}

	// stored in the current layout from now on
	meta.version = currentVersion()
	if err = meta.put(batch); err != nil {
		return nil, err
	}

	if _, err = batch.Persist(); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	e.cfg.Decimals = meta.decimals
	e.meta = meta
	e.initialized.Store(true)

	if err = e.Audit(); err != nil {
		return nil, err
	}

	supply := e.TotalSupply()
	e.metrics.SetSupply(supply)

	e.log.Info("token restored",
		zap.String("name", meta.name),
		zap.String("symbol", meta.symbol),
		zap.Int("decimals", meta.decimals),
		zap.Stringer("supply", supply))

	return e, nil
}

// Audit checks that total supply equals the sum of all balances, that all
// balances and allowances are positive (zero items are never stored) and that
// reserved accounts hold nothing.
func (e *Engine) Audit() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	var (
		sum = new(big.Int)
		err error
	)

	e.store.Seek(storage.SeekRange{Prefix: []byte{ledger.AccountPrefix}}, func(k, v []byte) bool {
		b := bigint.FromBytes(v)
		if b.Sign() <= 0 {
			err = fmt.Errorf("%w: balance %s of %x", ErrCorrupted, b, k[1:])
			return false
		}

		sum.Add(sum, b)
		return true
	})
	if err != nil {
		return err
	}

	e.store.Seek(storage.SeekRange{Prefix: []byte{allowance.Prefix}}, func(k, v []byte) bool {
		a := bigint.FromBytes(v)
		if a.Sign() <= 0 {
			err = fmt.Errorf("%w: allowance %s under %x", ErrCorrupted, a, k[1:])
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	l := ledger.New(storage.NewMemCachedStore(e.store))

	for acc := range e.reserved {
		if b := l.BalanceOf(acc); b.Sign() != 0 {
			return fmt.Errorf("%w: reserved account %s holds %s", ErrCorrupted, account.String(acc), b)
		}
	}

	supply := l.TotalSupply()
	if supply.Cmp(sum) != 0 {
		return fmt.Errorf("%w: total supply %s, sum of balances %s", ErrCorrupted, supply, sum)
	}

	return nil
}

func checkItem(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("empty key")
	}

	var expLen int

	switch key[0] {
	case MetadataPrefix:
		return nil
	case ledger.SupplyKey()[0]:
		expLen = 1
	case ledger.AccountPrefix:
		expLen = 1 + util.Uint160Size
	case allowance.Prefix:
		expLen = 1 + 2*util.Uint160Size
	default:
		return fmt.Errorf("unknown key prefix %q", key[0])
	}

	if len(key) != expLen {
		return fmt.Errorf("invalid key %x length %d", key, len(key))
	}

	if len(value) == 0 {
		return fmt.Errorf("empty value under %x", key)
	}

	return nil
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
