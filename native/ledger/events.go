package ledger

import (
	"fanvault/core/events"
	"fanvault/core/types"
)

const (
	// EventTypeSubscriptionOpened is emitted when a fan opens a deposit against a creator.
	EventTypeSubscriptionOpened = "subscription.opened"
	// EventTypeEarningsClaimed is emitted when vested funds settle to a creator.
	EventTypeEarningsClaimed = "subscription.claimed"
	// EventTypeSubscriptionCancelled is emitted when a fan cancels and recovers unvested funds.
	EventTypeSubscriptionCancelled = "subscription.cancelled"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// SubscriptionOpenedEvent returns the structured payload for a new deposit.
func SubscriptionOpenedEvent(payer, payee, deposited, rate string) *types.Event {
	return &types.Event{
		Type: EventTypeSubscriptionOpened,
		Attributes: map[string]string{
			"payer":     payer,
			"payee":     payee,
			"deposited": deposited,
			"rate":      rate,
		},
	}
}

// EarningsClaimedEvent returns the structured payload for a settled claim.
func EarningsClaimedEvent(payer, payee, amount, remaining string) *types.Event {
	return &types.Event{
		Type: EventTypeEarningsClaimed,
		Attributes: map[string]string{
			"payer":     payer,
			"payee":     payee,
			"amount":    amount,
			"remaining": remaining,
		},
	}
}

// SubscriptionCancelledEvent returns the structured payload for a cancellation.
// The settled attribute carries the vested amount paid to the payee as part of
// the final settlement, refund the amount returned to the payer.
func SubscriptionCancelledEvent(payer, payee, settled, refund string) *types.Event {
	return &types.Event{
		Type: EventTypeSubscriptionCancelled,
		Attributes: map[string]string{
			"payer":   payer,
			"payee":   payee,
			"settled": settled,
			"refund":  refund,
		},
	}
}
