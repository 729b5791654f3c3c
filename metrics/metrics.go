// Package metrics provides Prometheus collectors of the token ledger.
package metrics

import (
	"errors"
	"math/big"

	"github.com/nspcc-dev/token-ledger/common"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "token_ledger"

// Operation results used as label values.
const (
	ResultOK                    = "ok"
	ResultInvalidAmount         = "invalid_amount"
	ResultInsufficientFunds     = "insufficient_funds"
	ResultInsufficientAllowance = "insufficient_allowance"
	ResultInvalidRecipient      = "invalid_recipient"
	ResultAlreadyInitialized    = "already_initialized"
	ResultNotInitialized        = "not_initialized"
	ResultDisabled              = "disabled"
	ResultOther                 = "error"
)

// Collector groups ledger metrics. Nil Collector is valid and discards
// everything.
type Collector struct {
	ops    *prometheus.CounterVec
	supply prometheus.Gauge
	events  prometheus.Counter
	dropped prometheus.Counter
}

// New creates collectors and registers them in reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of ledger operations by result.",
			},
			[]string{"operation", "result"},
		),
		supply: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "total_supply",
				Help:      "Current total supply in raw token units.",
			},
		),
		events: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of emitted ledger events.",
			},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_events_total",
				Help:      "Total number of events dropped by asynchronous delivery.",
			},
		),
	}

	reg.MustRegister(c.ops, c.supply, c.events, c.dropped)

	return c
}

// ObserveOperation counts operation outcome.
func (c *Collector) ObserveOperation(op string, err error) {
	if c == nil {
		return
	}
	c.ops.WithLabelValues(op, Result(err)).Inc()
}

// SetSupply updates total supply gauge. Values beyond float64 precision are
// approximated.
func (c *Collector) SetSupply(v *big.Int) {
	if c == nil {
		return
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	c.supply.Set(f)
}

// IncEvents counts an emitted event.
func (c *Collector) IncEvents() {
	if c == nil {
		return
	}
	c.events.Inc()
}

// IncDroppedEvents counts an undelivered event.
func (c *Collector) IncDroppedEvents() {
	if c == nil {
		return
	}
	c.dropped.Inc()
}

// Result maps operation error to the result label value.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, common.ErrInvalidAmount):
		return ResultInvalidAmount
	case errors.Is(err, common.ErrInsufficientFunds):
		return ResultInsufficientFunds
	case errors.Is(err, common.ErrInsufficientAllowance):
		return ResultInsufficientAllowance
	case errors.Is(err, common.ErrInvalidRecipient):
		return ResultInvalidRecipient
	case errors.Is(err, common.ErrAlreadyInitialized):
		return ResultAlreadyInitialized
	case errors.Is(err, common.ErrNotInitialized):
		return ResultNotInitialized
	case errors.Is(err, common.ErrOperationDisabled):
		return ResultDisabled
	default:
		return ResultOther
	}
}
