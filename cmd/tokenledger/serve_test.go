package main

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/config"
	"github.com/nspcc-dev/token-ledger/dump"
	"github.com/nspcc-dev/token-ledger/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadConfig(t *testing.T) {
	_, err := loadConfig("")
	require.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte("token: {symbol: TT}\n"), 0600))
	_, err = loadConfig(p)
	require.Error(t, err, "issuer is required for a fresh ledger")
}

func saveLedger(t *testing.T, dir string, id dump.ID, supply int64) {
	e, err := token.New(token.Prm{Config: token.Config{Decimals: 1}})
	require.NoError(t, err)
	require.NoError(t, e.Initialize(util.Uint160{1}, big.NewInt(supply), "Test Token", "TT"))
	require.NoError(t, dump.Save(dir, id, e))
}

func TestOpenLedger(t *testing.T) {
	issuer := util.Uint160{0xaa}

	newConfig := func() config.Config {
		cfg := config.Default()
		cfg.Token.Name = "Fresh"
		cfg.Token.Symbol = "FR"
		cfg.Token.Decimals = 2
		cfg.Token.Supply = "1000"
		cfg.Token.Issuer = issuer.StringLE()
		require.NoError(t, cfg.Validate())
		return cfg
	}

	prm := func(cfg config.Config) token.Prm {
		return token.Prm{Config: cfg.Token.EngineConfig(), Logger: zaptest.NewLogger(t)}
	}

	dumps := t.TempDir()
	saveLedger(t, dumps, dump.ID{Label: config.DefaultDumpLabel, Seq: 1}, 10)
	saveLedger(t, dumps, dump.ID{Label: config.DefaultDumpLabel, Seq: 3}, 30)
	saveLedger(t, dumps, dump.ID{Label: "other", Seq: 9}, 90)

	t.Run("fresh", func(t *testing.T) {
		cfg := newConfig()

		e, seq, err := openLedger(cfg, prm(cfg))
		require.NoError(t, err)
		require.Zero(t, seq)
		require.Equal(t, "FR", e.Symbol())
		require.EqualValues(t, 100000, e.BalanceOf(issuer).Int64())
	})

	t.Run("fresh with existing dumps", func(t *testing.T) {
		cfg := newConfig()
		cfg.Dump.Dir = dumps

		e, seq, err := openLedger(cfg, prm(cfg))
		require.NoError(t, err)
		require.EqualValues(t, 3, seq)
		require.Equal(t, "FR", e.Symbol())
	})

	t.Run("restore latest", func(t *testing.T) {
		cfg := newConfig()
		cfg.Token.Issuer = ""
		cfg.Dump.Dir = dumps
		cfg.Dump.Restore = true
		require.NoError(t, cfg.Validate())

		e, seq, err := openLedger(cfg, prm(cfg))
		require.NoError(t, err)
		require.EqualValues(t, 3, seq)
		require.Equal(t, "TT", e.Symbol())
		require.Equal(t, 1, e.Decimals())
		require.EqualValues(t, 300, e.TotalSupply().Int64())
	})

	t.Run("nothing to restore", func(t *testing.T) {
		cfg := newConfig()
		cfg.Token.Issuer = ""
		cfg.Dump.Dir = t.TempDir()
		cfg.Dump.Restore = true

		_, _, err := openLedger(cfg, prm(cfg))
		require.Error(t, err)
	})
}
