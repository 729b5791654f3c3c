/*
Package event describes ledger notifications and their delivery.

Engine produces one Event per committed state change and passes it to a Sink.
Delivery guarantees (ordering across sinks, retries, durability) belong to the
sink implementation.
*/
package event

import (
	"math/big"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/token-ledger/account"
)

// Kind is a type of ledger event.
type Kind string

// Event kinds.
const (
	Transfer Kind = "Transfer"
	Mint     Kind = "Mint"
	Burn     Kind = "Burn"
	Approval Kind = "Approval"
)

// Event describes a committed ledger change.
//
// Subject accounts depend on the kind:
//   - Transfer: From -> To, Spender is set for delegated transfers;
//   - Mint: To receives new tokens;
//   - Burn: From loses burnt tokens;
//   - Approval: From is the owner, To is the delegate.
type Event struct {
	// Unique event identifier.
	ID uuid.UUID
	// Sequence number of the event in the emitting engine.
	Seq uint64

	Kind    Kind
	From    util.Uint160
	To      util.Uint160
	Spender util.Uint160

	// Transferred, minted or burnt amount. For Approval it's the resulting
	// allowance.
	Amount *big.Int

	// Resulting balances of From and To, nil if not applicable.
	FromBalance *big.Int
	ToBalance   *big.Int

	// Remaining allowance after delegated transfer, nil otherwise.
	Allowance *big.Int
	// Total supply after Mint and Burn, nil otherwise.
	TotalSupply *big.Int
}

// Sink accepts emitted events. Notify must not block the caller for long.
type Sink interface {
	Notify(Event)
}

// SinkFunc is a functional Sink.
type SinkFunc func(Event)

// Notify implements Sink.
func (f SinkFunc) Notify(e Event) {
	f(e)
}

// Multi broadcasts events to all sinks in order.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(e Event) {
	for i := range m {
		m[i].Notify(e)
	}
}

// Notification converts the event into NEP-17-compatible notification of the
// token contract with the given hash. Mint and Burn become Transfer with null
// source and destination respectively.
func (e Event) Notification(contract util.Uint160) state.NotificationEvent {
	var (
		name     = string(Transfer)
		from, to = e.From, e.To
	)

	switch e.Kind {
	case Mint:
		from = account.Zero
	case Burn:
		to = account.Zero
	case Approval:
		name = string(Approval)
	}

	amount := e.Amount
	if amount == nil {
		amount = new(big.Int)
	}

	return state.NotificationEvent{
		ScriptHash: contract,
		Name:       name,
		Item: stackitem.NewArray([]stackitem.Item{
			accountItem(from),
			accountItem(to),
			stackitem.NewBigInteger(amount),
		}),
	}
}

func accountItem(acc util.Uint160) stackitem.Item {
	if account.IsZero(acc) {
		return stackitem.Null{}
	}
	return stackitem.NewByteArray(acc.BytesBE())
}
