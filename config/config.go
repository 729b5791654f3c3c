// Package config contains token ledger service configuration.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/token-ledger/account"
	"github.com/nspcc-dev/token-ledger/token"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAddress      = ":8080"
	DefaultCallerHeader = "X-Caller"
	DefaultQueueSize    = 1024
	DefaultDumpLabel    = "ledger"
	DefaultTimeout      = 10 * time.Second
)

// Config is the service configuration.
type Config struct {
	Token  Token  `yaml:"token"`
	Logger Logger `yaml:"logger"`
	API    API    `yaml:"api"`
	Events Events `yaml:"events"`
	Dump   Dump   `yaml:"dump"`
}

// Token describes the served token. Name, symbol, supply and issuer are used
// only for a fresh ledger, restored ledgers keep dumped values. Issuer can be
// omitted only if Dump.Restore is set.
type Token struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
	// Initial supply in whole tokens.
	Supply string `yaml:"supply"`
	// Issuer address or script hash.
	Issuer      string   `yaml:"issuer"`
	EmitEvents  bool     `yaml:"emit_events"`
	DisableMint bool     `yaml:"disable_mint"`
	DisableBurn bool     `yaml:"disable_burn"`
	Reserved    []string `yaml:"reserved"`
}

// Logger configures zap logger.
type Logger struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// API configures HTTP server.
type API struct {
	Address string `yaml:"address"`
	// Header carrying caller account.
	CallerHeader string        `yaml:"caller_header"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Events configures event delivery.
type Events struct {
	// Buffer of the asynchronous queue, 0 delivers events synchronously.
	QueueSize int `yaml:"queue_size"`
}

// Dump configures ledger snapshots.
type Dump struct {
	// Directory with dumps, empty disables dumping.
	Dir   string `yaml:"dir"`
	Label string `yaml:"label"`
	// Restore the latest dump with the label on start.
	Restore bool `yaml:"restore"`
}

// Default returns configuration with default values.
func Default() Config {
	return Config{
		Token: Token{
			Supply:     "0",
			EmitEvents: true,
		},
		Logger: Logger{
			Level:    "info",
			Encoding: "console",
		},
		API: API{
			Address:      DefaultAddress,
			CallerHeader: DefaultCallerHeader,
			ReadTimeout:  DefaultTimeout,
			WriteTimeout: DefaultTimeout,
		},
		Events: Events{
			QueueSize: DefaultQueueSize,
		},
		Dump: Dump{
			Label: DefaultDumpLabel,
		},
	}
}

// Load reads YAML configuration file. Missing values are set to defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks configuration values.
func (c Config) Validate() error {
	if c.Token.Decimals < 0 || c.Token.Decimals > token.MaxDecimals {
		return fmt.Errorf("token: decimals %d out of [0, %d] range", c.Token.Decimals, token.MaxDecimals)
	}

	if _, err := c.Token.InitialSupply(); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	switch {
	case c.Token.Issuer != "":
		if _, err := c.Token.IssuerAccount(); err != nil {
			return fmt.Errorf("token: %w", err)
		}
	case !c.Dump.Restore:
		return errors.New("token: issuer is required unless restoring from dump")
	}

	if _, err := c.Token.ReservedAccounts(); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	switch c.Logger.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("logger: unsupported encoding %q", c.Logger.Encoding)
	}

	if c.API.CallerHeader == "" {
		return errors.New("api: empty caller header")
	}

	if c.Events.QueueSize < 0 {
		return fmt.Errorf("events: negative queue size %d", c.Events.QueueSize)
	}

	if c.Dump.Restore && c.Dump.Dir == "" {
		return errors.New("dump: restore requires dump directory")
	}

	return nil
}

// InitialSupply parses the initial supply.
func (t Token) InitialSupply() (*big.Int, error) {
	v, ok := new(big.Int).SetString(t.Supply, 10)
	if !ok {
		return nil, fmt.Errorf("invalid supply %q", t.Supply)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative supply %s", v)
	}
	return v, nil
}

// IssuerAccount parses the issuer account.
func (t Token) IssuerAccount() (util.Uint160, error) {
	acc, err := account.Parse(t.Issuer)
	if err != nil {
		return acc, fmt.Errorf("issuer: %w", err)
	}
	return acc, nil
}

// ReservedAccounts parses reserved accounts.
func (t Token) ReservedAccounts() ([]util.Uint160, error) {
	res := make([]util.Uint160, 0, len(t.Reserved))
	for i := range t.Reserved {
		acc, err := account.Parse(t.Reserved[i])
		if err != nil {
			return nil, fmt.Errorf("reserved account #%d: %w", i, err)
		}
		res = append(res, acc)
	}
	return res, nil
}

// EngineConfig returns token engine parameters. Config must be valid.
func (t Token) EngineConfig() token.Config {
	reserved, _ := t.ReservedAccounts()

	return token.Config{
		Decimals:    t.Decimals,
		EmitEvents:  t.EmitEvents,
		DisableMint: t.DisableMint,
		DisableBurn: t.DisableBurn,
		Reserved:    reserved,
	}
}

// Build creates logger. Config must be valid.
func (l Logger) Build() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.Encoding = l.Encoding
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if l.Encoding == "console" {
		c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return c.Build()
}
