package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/token-ledger/api"
	"github.com/nspcc-dev/token-ledger/config"
	"github.com/nspcc-dev/token-ledger/dump"
	"github.com/nspcc-dev/token-ledger/event"
	"github.com/nspcc-dev/token-ledger/metrics"
	"github.com/nspcc-dev/token-ledger/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

func serveCommand() cli.Command {
	return cli.Command{
		Name:  "serve",
		Usage: "Serve token API",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config, c",
				Usage: "Path to YAML configuration file (required)",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	log, err := cfg.Logger.Build()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("build logger: %w", err), 1)
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector := metrics.New(reg)

	var sink event.Sink = event.NewLogSink(log.Named("events"))
	if cfg.Events.QueueSize > 0 {
		q := event.NewQueue(sink, cfg.Events.QueueSize, log, collector)
		defer q.Close()
		sink = q
	}

	prm := token.Prm{
		Config:  cfg.Token.EngineConfig(),
		Logger:  log,
		Sink:    sink,
		Metrics: collector,
	}

	engine, lastDump, err := openLedger(cfg, prm)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	srv := &http.Server{
		Addr: cfg.API.Address,
		Handler: api.NewHandler(api.Prm{
			Ledger:   engine,
			Caller:   api.HeaderResolver(cfg.API.CallerHeader),
			Logger:   log.Named("api"),
			Gatherer: reg,
		}),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving token API", zap.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return cli.NewExitError(fmt.Errorf("serve API: %w", err), 1)
		}
	case <-ctx.Done():
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.WriteTimeout)
		defer cancel()

		if err = srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("API shutdown", zap.Error(err))
		}
	}

	if cfg.Dump.Dir == "" {
		return nil
	}

	id := dump.ID{Label: cfg.Dump.Label, Seq: lastDump + 1}
	if err = os.MkdirAll(cfg.Dump.Dir, 0700); err != nil {
		return cli.NewExitError(fmt.Errorf("create dump directory: %w", err), 1)
	}
	if err = dump.Save(cfg.Dump.Dir, id, engine); err != nil {
		return cli.NewExitError(fmt.Errorf("save dump %s: %w", id, err), 1)
	}

	log.Info("ledger dumped", zap.String("dir", cfg.Dump.Dir), zap.Stringer("id", id))

	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, errors.New("missing configuration file, use --config")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// openLedger restores the latest dump or initializes a new ledger. It also
// returns sequence number of the latest existing dump.
func openLedger(cfg config.Config, prm token.Prm) (*token.Engine, uint64, error) {
	var (
		latest *dump.Reader
		seq    uint64
	)

	if cfg.Dump.Dir != "" {
		err := dump.IterateDumps(cfg.Dump.Dir, func(id dump.ID, r *dump.Reader) error {
			if id.Label == cfg.Dump.Label && (latest == nil || id.Seq > seq) {
				latest, seq = r, id.Seq
			}
			return nil
		})
		if err != nil {
			return nil, 0, fmt.Errorf("list dumps: %w", err)
		}
	}

	if cfg.Dump.Restore && latest != nil {
		e, err := dump.Restore(latest, prm)
		if err != nil {
			return nil, 0, fmt.Errorf("restore dump %s: %w", dump.ID{Label: cfg.Dump.Label, Seq: seq}, err)
		}
		return e, seq, nil
	}

	if cfg.Token.Issuer == "" {
		return nil, 0, fmt.Errorf("no %q dump to restore in %s and no token issuer configured",
			cfg.Dump.Label, cfg.Dump.Dir)
	}

	e, err := token.New(prm)
	if err != nil {
		return nil, 0, err
	}

	supply, err := cfg.Token.InitialSupply()
	if err != nil {
		return nil, 0, err
	}

	issuer, err := cfg.Token.IssuerAccount()
	if err != nil {
		return nil, 0, err
	}

	if err = e.Initialize(issuer, supply, cfg.Token.Name, cfg.Token.Symbol); err != nil {
		return nil, 0, fmt.Errorf("initialize token: %w", err)
	}

	return e, seq, nil
}
