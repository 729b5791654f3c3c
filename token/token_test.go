package token

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/event"
	"github.com/nspcc-dev/token-ledger/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"
)

var (
	issuer = util.Uint160{0xaa}
	bob    = util.Uint160{0xbb}
	carol  = util.Uint160{0xcc}
	dave   = util.Uint160{0xdd}
)

type testEngine struct {
	*Engine
	events *event.Recorder
}

func newEngine(t *testing.T, cfg Config) testEngine {
	rec := new(event.Recorder)

	e, err := New(Prm{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
		Sink:   rec,
	})
	require.NoError(t, err)

	return testEngine{Engine: e, events: rec}
}

// newToken returns engine initialized with 1000 tokens of precision 2 on
// issuer's account.
func newToken(t *testing.T) testEngine {
	e := newEngine(t, Config{Decimals: 2, EmitEvents: true})
	require.NoError(t, e.Initialize(issuer, big.NewInt(1000), "Test Token", "TT"))
	e.events.Reset()
	return e
}

func requireInt(t *testing.T, exp int64, actual *big.Int) {
	require.NotNil(t, actual)
	require.Zero(t, big.NewInt(exp).Cmp(actual), "expected %d, got %s", exp, actual)
}

func requireBalances(t *testing.T, e testEngine, supply int64, balances map[util.Uint160]int64) {
	sum := new(big.Int)
	for acc, exp := range balances {
		bal := e.BalanceOf(acc)
		requireInt(t, exp, bal)
		sum.Add(sum, bal)
	}
	requireInt(t, supply, e.TotalSupply())
	require.Zero(t, sum.Cmp(e.TotalSupply()), "conservation")
	require.NoError(t, e.Audit())
}

func TestNew(t *testing.T) {
	for _, d := range []int{-1, MaxDecimals + 1} {
		_, err := New(Prm{Config: Config{Decimals: d}})
		require.Error(t, err, d)
	}

	e, err := New(Prm{Config: Config{Decimals: MaxDecimals}})
	require.NoError(t, err)
	require.Equal(t, MaxDecimals, e.Decimals())
	require.Empty(t, e.Name())
	require.Empty(t, e.Symbol())
	require.Zero(t, e.TotalSupply().Sign())
}

func TestEngine_Initialize(t *testing.T) {
	e := newEngine(t, Config{Decimals: 2, EmitEvents: true})

	t.Run("not initialized", func(t *testing.T) {
		require.ErrorIs(t, e.Transfer(issuer, bob, big.NewInt(1)), ErrNotInitialized)
		_, err := e.Mint(issuer, big.NewInt(1))
		require.ErrorIs(t, err, ErrNotInitialized)
		require.ErrorIs(t, e.Approve(issuer, bob, big.NewInt(1)), ErrNotInitialized)
		_, err = e.Snapshot(func(_, _ []byte) error { return nil })
		require.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("invalid", func(t *testing.T) {
		require.ErrorIs(t, e.Initialize(issuer, big.NewInt(-1), "Test Token", "TT"), ErrInvalidAmount)
		require.ErrorIs(t, e.Initialize(account.Zero, big.NewInt(1), "Test Token", "TT"), ErrInvalidRecipient)
		require.Empty(t, e.events.Events())
	})

	require.NoError(t, e.Initialize(issuer, big.NewInt(1000), "Test Token", "TT"))
	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 100000})
	require.Equal(t, "Test Token", e.Name())
	require.Equal(t, "TT", e.Symbol())
	require.Equal(t, 2, e.Decimals())

	evs := e.events.Events()
	require.Len(t, evs, 1)
	require.Equal(t, event.Mint, evs[0].Kind)
	require.Equal(t, issuer, evs[0].To)
	requireInt(t, 100000, evs[0].Amount)
	requireInt(t, 100000, evs[0].TotalSupply)

	info := e.Info()
	require.Equal(t, "TT", info.Symbol)
	requireInt(t, 100000, info.TotalSupply)
	require.Equal(t, ProtocolVersion, info.Protocol)

	t.Run("twice", func(t *testing.T) {
		require.ErrorIs(t, e.Initialize(bob, big.NewInt(1), "Other", "O"), ErrAlreadyInitialized)
		requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 100000, bob: 0})
		require.Equal(t, "Test Token", e.Name())
	})
}

func TestEngine_Scenario(t *testing.T) {
	e := newToken(t)

	require.NoError(t, e.Transfer(issuer, bob, big.NewInt(400)))
	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 99600, bob: 400})

	require.NoError(t, e.Approve(bob, carol, big.NewInt(150)))
	require.NoError(t, e.TransferFrom(carol, bob, dave, big.NewInt(150)))
	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 99600, bob: 250, dave: 150})
	require.Zero(t, e.Allowance(bob, carol).Sign())

	err := e.TransferFrom(carol, bob, dave, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 99600, bob: 250, dave: 150})

	_, err = e.Burn(bob, big.NewInt(10000))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 99600, bob: 250, dave: 150})

	supply, err := e.Mint(issuer, big.NewInt(500))
	require.NoError(t, err)
	requireInt(t, 100500, supply)
	requireBalances(t, e, 100500, map[util.Uint160]int64{issuer: 100100, bob: 250, dave: 150})

	supply, err = e.Burn(dave, big.NewInt(50))
	require.NoError(t, err)
	requireInt(t, 100450, supply)

	kinds := make([]event.Kind, 0)
	for _, ev := range e.events.Events() {
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []event.Kind{event.Transfer, event.Approval, event.Transfer, event.Mint, event.Burn}, kinds)
}

func TestEngine_Transfer(t *testing.T) {
	e := newToken(t)

	t.Run("invalid amount", func(t *testing.T) {
		require.ErrorIs(t, e.Transfer(issuer, bob, big.NewInt(-1)), ErrInvalidAmount)
		require.ErrorIs(t, e.Transfer(issuer, bob, nil), ErrInvalidAmount)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		require.ErrorIs(t, e.Transfer(bob, issuer, big.NewInt(1)), ErrInsufficientFunds)
		require.ErrorIs(t, e.Transfer(issuer, bob, big.NewInt(100001)), ErrInsufficientFunds)
	})

	t.Run("reserved recipient", func(t *testing.T) {
		require.ErrorIs(t, e.Transfer(issuer, account.Zero, big.NewInt(1)), ErrInvalidRecipient)
	})

	t.Run("zero", func(t *testing.T) {
		require.NoError(t, e.Transfer(issuer, bob, big.NewInt(0)))
		require.NoError(t, e.Transfer(bob, issuer, big.NewInt(0)))
	})

	t.Run("self", func(t *testing.T) {
		require.NoError(t, e.Transfer(issuer, issuer, big.NewInt(100000)))
		require.ErrorIs(t, e.Transfer(issuer, issuer, big.NewInt(100001)), ErrInsufficientFunds)
	})

	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 100000, bob: 0})

	evs := e.events.Events()
	require.Len(t, evs, 1, "only self-transfer is committed")

	require.NoError(t, e.Transfer(issuer, bob, big.NewInt(100000)))
	requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 0, bob: 100000})

	evs = e.events.Events()
	last := evs[len(evs)-1]
	require.Equal(t, event.Transfer, last.Kind)
	require.Equal(t, issuer, last.From)
	require.Equal(t, bob, last.To)
	require.True(t, account.IsZero(last.Spender))
	requireInt(t, 0, last.FromBalance)
	requireInt(t, 100000, last.ToBalance)
	require.Greater(t, last.Seq, evs[0].Seq)
	require.NotEqual(t, evs[0].ID, last.ID)
}

func TestEngine_MintBurn(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		e := newToken(t)

		supply, err := e.Mint(bob, big.NewInt(0))
		require.NoError(t, err)
		requireInt(t, 100000, supply)

		supply, err = e.Burn(bob, big.NewInt(0))
		require.NoError(t, err)
		requireInt(t, 100000, supply)

		require.Empty(t, e.events.Events())
	})

	t.Run("negative", func(t *testing.T) {
		e := newToken(t)

		_, err := e.Mint(issuer, big.NewInt(-5))
		require.ErrorIs(t, err, ErrInvalidAmount)
		_, err = e.Burn(issuer, big.NewInt(-5))
		require.ErrorIs(t, err, ErrInvalidAmount)
		requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 100000})
	})

	t.Run("burn everything", func(t *testing.T) {
		e := newToken(t)

		supply, err := e.Burn(issuer, big.NewInt(100000))
		require.NoError(t, err)
		require.Zero(t, supply.Sign())
		requireBalances(t, e, 0, map[util.Uint160]int64{issuer: 0})

		evs := e.events.Events()
		require.Len(t, evs, 1)
		require.Equal(t, event.Burn, evs[0].Kind)
		requireInt(t, 0, evs[0].TotalSupply)
	})

	t.Run("reserved", func(t *testing.T) {
		e := newToken(t)

		_, err := e.Mint(account.Zero, big.NewInt(1))
		require.ErrorIs(t, err, ErrInvalidRecipient)
	})

	t.Run("disabled", func(t *testing.T) {
		e := newEngine(t, Config{Decimals: 0, DisableMint: true, DisableBurn: true})
		require.NoError(t, e.Initialize(issuer, big.NewInt(10), "Fixed", "FX"))

		_, err := e.Mint(issuer, big.NewInt(1))
		require.ErrorIs(t, err, ErrOperationDisabled)
		_, err = e.Burn(issuer, big.NewInt(1))
		require.ErrorIs(t, err, ErrOperationDisabled)
		requireBalances(t, e, 10, map[util.Uint160]int64{issuer: 10})
	})
}

func TestEngine_Approve(t *testing.T) {
	e := newToken(t)

	require.NoError(t, e.Approve(bob, carol, big.NewInt(100)))
	requireInt(t, 100, e.Allowance(bob, carol))
	require.Zero(t, e.Allowance(carol, bob).Sign())

	require.NoError(t, e.Approve(bob, carol, big.NewInt(30)))
	requireInt(t, 30, e.Allowance(bob, carol))

	require.ErrorIs(t, e.Approve(bob, carol, big.NewInt(-1)), ErrInvalidAmount)
	requireInt(t, 30, e.Allowance(bob, carol))

	require.NoError(t, e.Approve(bob, carol, big.NewInt(0)))
	require.Zero(t, e.Allowance(bob, carol).Sign())

	evs := e.events.Events()
	require.Len(t, evs, 3)
	for _, ev := range evs {
		require.Equal(t, event.Approval, ev.Kind)
		require.Equal(t, bob, ev.From)
		require.Equal(t, carol, ev.To)
	}
	requireInt(t, 0, evs[2].Amount)
}

func TestEngine_UpdateApprove(t *testing.T) {
	e := newToken(t)

	res, err := e.UpdateApprove(bob, carol, big.NewInt(100))
	require.NoError(t, err)
	requireInt(t, 100, res)

	res, err = e.UpdateApprove(bob, carol, big.NewInt(-40))
	require.NoError(t, err)
	requireInt(t, 60, res)

	_, err = e.UpdateApprove(bob, carol, big.NewInt(-61))
	require.ErrorIs(t, err, ErrInvalidAmount)
	requireInt(t, 60, e.Allowance(bob, carol))

	res, err = e.UpdateApprove(bob, carol, big.NewInt(0))
	require.NoError(t, err)
	requireInt(t, 60, res)

	_, err = e.UpdateApprove(bob, carol, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	require.Len(t, e.events.Events(), 2)
}

func TestEngine_TransferFrom(t *testing.T) {
	t.Run("insufficient funds keeps allowance", func(t *testing.T) {
		e := newToken(t)

		require.NoError(t, e.Transfer(issuer, bob, big.NewInt(10)))
		require.NoError(t, e.Approve(bob, carol, big.NewInt(100)))

		err := e.TransferFrom(carol, bob, dave, big.NewInt(50))
		require.ErrorIs(t, err, ErrInsufficientFunds)
		requireInt(t, 100, e.Allowance(bob, carol))
		requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 99990, bob: 10, dave: 0})
	})

	t.Run("reserved recipient", func(t *testing.T) {
		e := newToken(t)

		require.NoError(t, e.Approve(issuer, carol, big.NewInt(100)))
		err := e.TransferFrom(carol, issuer, account.Zero, big.NewInt(50))
		require.ErrorIs(t, err, ErrInvalidRecipient)
		requireInt(t, 100, e.Allowance(issuer, carol))
	})

	t.Run("partial spending", func(t *testing.T) {
		e := newToken(t)

		require.NoError(t, e.Approve(issuer, carol, big.NewInt(100)))
		require.NoError(t, e.TransferFrom(carol, issuer, dave, big.NewInt(30)))
		require.NoError(t, e.TransferFrom(carol, issuer, carol, big.NewInt(30)))
		requireInt(t, 40, e.Allowance(issuer, carol))
		requireBalances(t, e, 100000, map[util.Uint160]int64{issuer: 99940, carol: 30, dave: 30})

		evs := e.events.Events()
		last := evs[len(evs)-1]
		require.Equal(t, event.Transfer, last.Kind)
		require.Equal(t, carol, last.Spender)
		requireInt(t, 40, last.Allowance)
	})

	t.Run("zero and negative", func(t *testing.T) {
		e := newToken(t)

		require.NoError(t, e.TransferFrom(carol, issuer, dave, big.NewInt(0)))
		require.ErrorIs(t, e.TransferFrom(carol, issuer, dave, big.NewInt(-1)), ErrInvalidAmount)
		require.Empty(t, e.events.Events())
	})

	t.Run("delegate is not owner", func(t *testing.T) {
		e := newToken(t)

		require.NoError(t, e.Approve(issuer, carol, big.NewInt(100)))
		err := e.TransferFrom(dave, issuer, dave, big.NewInt(1))
		require.ErrorIs(t, err, ErrInsufficientAllowance)
	})
}

func TestEngine_EventsDisabled(t *testing.T) {
	e := newEngine(t, Config{Decimals: 2})
	require.NoError(t, e.Initialize(issuer, big.NewInt(1), "Test Token", "TT"))
	require.NoError(t, e.Transfer(issuer, bob, big.NewInt(1)))
	require.NoError(t, e.Approve(bob, carol, big.NewInt(1)))

	require.Empty(t, e.events.Events())
	requireBalances(t, e, 100, map[util.Uint160]int64{issuer: 99, bob: 1})
}

func TestEngine_Reserved(t *testing.T) {
	e := newEngine(t, Config{Reserved: []util.Uint160{dave}})
	require.NoError(t, e.Initialize(issuer, big.NewInt(10), "Test Token", "TT"))

	require.ErrorIs(t, e.Transfer(issuer, dave, big.NewInt(1)), ErrInvalidRecipient)
	require.NoError(t, e.Transfer(issuer, bob, big.NewInt(1)))
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	e, err := New(Prm{Config: Config{Decimals: 1}, Metrics: m})
	require.NoError(t, err)

	require.NoError(t, e.Initialize(issuer, big.NewInt(10), "Test Token", "TT"))
	require.NoError(t, e.Transfer(issuer, bob, big.NewInt(1)))
	require.ErrorIs(t, e.Transfer(bob, issuer, big.NewInt(2)), ErrInsufficientFunds)

	_, err = e.Mint(issuer, big.NewInt(5))
	require.NoError(t, err)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP token_ledger_total_supply Current total supply in raw token units.
# TYPE token_ledger_total_supply gauge
token_ledger_total_supply 105
`), "token_ledger_total_supply"))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP token_ledger_operations_total Total number of ledger operations by result.
# TYPE token_ledger_operations_total counter
token_ledger_operations_total{operation="initialize",result="ok"} 1
token_ledger_operations_total{operation="mint",result="ok"} 1
token_ledger_operations_total{operation="transfer",result="insufficient_funds"} 1
token_ledger_operations_total{operation="transfer",result="ok"} 1
`), "token_ledger_operations_total"))
}

func TestEngine_Concurrent(t *testing.T) {
	const (
		workers  = 8
		rounds   = 200
		accounts = 16
	)

	e := newEngine(t, Config{})
	require.NoError(t, e.Initialize(issuer, big.NewInt(accounts*100), "Test Token", "TT"))

	accs := make([]util.Uint160, accounts)
	for i := range accs {
		accs[i] = util.Uint160{byte(i + 1)}
		require.NoError(t, e.Transfer(issuer, accs[i], big.NewInt(100)))
	}

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()

			for i := 0; i < rounds; i++ {
				from := accs[(w+i)%accounts]
				to := accs[(w*3+i*7+1)%accounts]

				err := e.Transfer(from, to, big.NewInt(int64(i%13)))
				if err != nil && !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("unexpected error: %v", err)
					return
				}

				if i%10 == 0 {
					_, err = e.Mint(from, big.NewInt(1))
					if err != nil {
						t.Errorf("mint: %v", err)
						return
					}
				}
			}
		}(w)
	}

	wg.Wait()

	sum := new(big.Int)
	for _, acc := range accs {
		bal := e.BalanceOf(acc)
		require.GreaterOrEqual(t, bal.Sign(), 0)
		sum.Add(sum, bal)
	}

	requireInt(t, accounts*100+workers*rounds/10, sum)
	require.Zero(t, sum.Cmp(e.TotalSupply()))
	require.NoError(t, e.Audit())
}

func TestEngine_ConcurrentAllowance(t *testing.T) {
	const (
		spenders = 50
		amount   = 10
	)

	e := newEngine(t, Config{})
	require.NoError(t, e.Initialize(issuer, big.NewInt(1000), "Test Token", "TT"))
	require.NoError(t, e.Approve(issuer, carol, big.NewInt(100)))

	spend := func(wg *sync.WaitGroup, ok *atomic.Int64) {
		defer wg.Done()

		err := e.TransferFrom(carol, issuer, dave, big.NewInt(amount))
		switch {
		case err == nil:
			ok.Inc()
		case !errors.Is(err, ErrInsufficientAllowance):
			t.Errorf("unexpected error: %v", err)
		}
	}

	t.Run("spending", func(t *testing.T) {
		var (
			wg sync.WaitGroup
			ok atomic.Int64
		)

		for i := 0; i < spenders; i++ {
			wg.Add(1)
			go spend(&wg, &ok)
		}
		wg.Wait()

		require.EqualValues(t, 100/amount, ok.Load())
		require.Zero(t, e.Allowance(issuer, carol).Sign())
		requireBalances(t, e, 1000, map[util.Uint160]int64{issuer: 900, dave: 100})
	})

	t.Run("with updates", func(t *testing.T) {
		const increases = 5

		var (
			wg sync.WaitGroup
			ok atomic.Int64
		)

		for i := 0; i < spenders; i++ {
			wg.Add(1)
			go spend(&wg, &ok)

			if i%(spenders/increases) == 0 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := e.UpdateApprove(issuer, carol, big.NewInt(2*amount)); err != nil {
						t.Errorf("update approve: %v", err)
					}
				}()
			}
		}
		wg.Wait()

		granted := int64(increases * 2 * amount)
		spent := ok.Load() * amount
		requireInt(t, granted-spent, e.Allowance(issuer, carol))
		requireBalances(t, e, 1000, map[util.Uint160]int64{issuer: 900 - spent, dave: 100 + spent})
	})
}

func TestEngine_StalledSink(t *testing.T) {
	var (
		started = make(chan struct{})
		release = make(chan struct{})
		once    sync.Once
	)

	e, err := New(Prm{
		Config: Config{EmitEvents: true},
		Logger: zaptest.NewLogger(t),
		Sink: event.SinkFunc(func(ev event.Event) {
			if ev.Kind == event.Transfer {
				once.Do(func() { close(started) })
				<-release
			}
		}),
	})
	require.NoError(t, err)
	require.NoError(t, e.Initialize(issuer, big.NewInt(10), "Test Token", "TT"))

	blocked := make(chan error, 1)
	go func() { blocked <- e.Transfer(issuer, bob, big.NewInt(1)) }()
	<-started

	// the first transfer is committed and waits for delivery only
	requireInt(t, 1, e.BalanceOf(bob))

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, e.Approve(issuer, bob, big.NewInt(5)))
		assert.NoError(t, e.Audit())
		_, err := e.Snapshot(func(_, _ []byte) error { return nil })
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine blocked by stalled sink")
	}

	close(release)
	require.NoError(t, <-blocked)
	requireBalances(t, testEngine{Engine: e}, 10, map[util.Uint160]int64{issuer: 9, bob: 1})
}
