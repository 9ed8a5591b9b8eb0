package chat

import "fmt"

// CounterpartyType tags the non-admin side of a conversation. The set is
// closed; every dispatch on it is an exhaustive switch.
type CounterpartyType string

const (
	Customer CounterpartyType = "customer"
	Vendor   CounterpartyType = "vendor"
	Driver   CounterpartyType = "driver"
)

// CounterpartyTypes lists the closed set in display order.
var CounterpartyTypes = []CounterpartyType{Customer, Vendor, Driver}

// ParseCounterpartyType validates a wire-level type tag.
func ParseCounterpartyType(s string) (CounterpartyType, error) {
	switch CounterpartyType(s) {
	case Customer, Vendor, Driver:
		return CounterpartyType(s), nil
	}
	return "", fmt.Errorf("unknown counterparty type %q", s)
}

// Valid reports whether t is one of the closed set.
func (t CounterpartyType) Valid() bool {
	switch t {
	case Customer, Vendor, Driver:
		return true
	}
	return false
}

// Label returns the section heading used in the conversation panel.
func (t CounterpartyType) Label() string {
	switch t {
	case Customer:
		return "CUSTOMERS"
	case Vendor:
		return "VENDORS"
	case Driver:
		return "DRIVERS"
	}
	return "UNKNOWN"
}

// Glyph returns the single-cell marker rendered next to a conversation.
func (t CounterpartyType) Glyph() string {
	switch t {
	case Customer:
		return "●"
	case Vendor:
		return "■"
	case Driver:
		return "▲"
	}
	return "?"
}

// Color returns the tview color tag for the counterparty side of a thread.
func (t CounterpartyType) Color() string {
	switch t {
	case Customer:
		return "aqua"
	case Vendor:
		return "orange"
	case Driver:
		return "green"
	}
	return "white"
}

// ConversationKey is conversation identity: two conversations are the same
// entity iff both fields match. Display fields never participate.
type ConversationKey struct {
	Type CounterpartyType
	ID   string
}

func (k ConversationKey) String() string {
	return string(k.Type) + "/" + k.ID
}

// Conversation is one entry in the directory the backend returns. The client
// never creates one; first send to a fresh counterparty starts it server-side.
type Conversation struct {
	Key           ConversationKey
	DisplayName   string
	DisplayHandle string // email, or the id when no email is known
}
