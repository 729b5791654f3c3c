package event

import (
	"math/big"
	"sync"

	"github.com/nspcc-dev/token-ledger/account"
	"go.uber.org/zap"
)

// LogSink writes events into the log.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink returns Sink logging events at info level.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Notify implements Sink.
func (s *LogSink) Notify(e Event) {
	fields := []zap.Field{
		zap.Stringer("id", e.ID),
		zap.Uint64("seq", e.Seq),
		zap.String("kind", string(e.Kind)),
		zap.Stringer("amount", e.Amount),
	}

	if !account.IsZero(e.From) {
		fields = append(fields, zap.String("from", account.String(e.From)))
	}
	if !account.IsZero(e.To) {
		fields = append(fields, zap.String("to", account.String(e.To)))
	}
	if !account.IsZero(e.Spender) {
		fields = append(fields, zap.String("spender", account.String(e.Spender)))
	}

	for _, f := range []struct {
		name string
		v    *big.Int
	}{
		{"from_balance", e.FromBalance},
		{"to_balance", e.ToBalance},
		{"allowance", e.Allowance},
		{"total_supply", e.TotalSupply},
	} {
		if f.v != nil {
			fields = append(fields, zap.Stringer(f.name, f.v))
		}
	}

	s.log.Info("ledger event", fields...)
}

// Recorder keeps all received events in memory.
type Recorder struct {
	mtx    sync.Mutex
	events []Event
}

// Notify implements Sink.
func (r *Recorder) Notify(e Event) {
	r.mtx.Lock()
	r.events = append(r.events, e)
	r.mtx.Unlock()
}

// Events returns a copy of recorded events.
func (r *Recorder) Events() []Event {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	res := make([]Event, len(r.events))
	copy(res, r.events)
	return res
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mtx.Lock()
	r.events = nil
	r.mtx.Unlock()
}
