package model

import "time"

// TicketState is the gate-side lifecycle of an issued ticket.
// Re-entry is permitted: a checked-out ticket may be checked in
// again, but a ticket can never be checked in twice without an
// intervening check-out.
type TicketState string

const (
	TicketIssued     TicketState = "issued"
	TicketCheckedIn  TicketState = "checked_in"
	TicketCheckedOut TicketState = "checked_out"
)

// CanCheckIn reports whether a ticket in the given state may pass the
// entry gate.
func CanCheckIn(s TicketState) bool {
	return s == TicketIssued || s == TicketCheckedOut
}

// CanCheckOut reports whether a ticket in the given state may leave
// through the gate.
func CanCheckOut(s TicketState) bool {
	return s == TicketCheckedIn
}

// Ticket mirrors the `tickets` table. Credential is the unguessable
// redemption token encoded in the QR payload: 32 random bytes hex
// encoded, unique across all tickets. Tickets exist only for orders
// whose payment reached succeeded.
type Ticket struct {
	ID           uint64
	OrderID      uint64
	TicketTypeID uint64
	Credential   string
	State        TicketState
	CheckedInAt  *time.Time
	CheckedInBy  *uint64
	CheckedOutAt *time.Time
	CreatedAt    time.Time
	DeletedAt    *time.Time
}
