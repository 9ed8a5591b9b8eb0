package chat

import (
	"slices"
	"time"
)

// Sender identifies which side of the conversation authored a message.
type Sender string

const (
	SenderAdmin        Sender = "admin"
	SenderCounterparty Sender = "counterparty"
)

// DeliveryState is the rendering-only lifecycle of a message. It is never
// persisted; failed messages leave the log entirely rather than lingering.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// deliveryTransitions is the allowed lifecycle: an optimistic entry either
// confirms or fails; confirmed and failed are terminal.
var deliveryTransitions = map[DeliveryState][]DeliveryState{
	DeliveryPending: {DeliveryConfirmed, DeliveryFailed},
}

// CanTransition reports whether s may move to next.
func (s DeliveryState) CanTransition(next DeliveryState) bool {
	return slices.Contains(deliveryTransitions[s], next)
}

// Message is one entry in a conversation's log. Optimistic messages carry a
// client-generated temp id that is never reused as a real server id; the
// server-assigned id and timestamp arrive with the reconciling refetch.
type Message struct {
	ID        string
	Text      string
	Sender    Sender
	Timestamp time.Time
	Delivery  DeliveryState
}
