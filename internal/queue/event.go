// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketInfo is one issued ticket inside an OrderCompletedEvent,
// carrying what the delivery email needs to render it.
type TicketInfo struct {
	TicketTypeName string `json:"ticket_type_name"`
	Credential     string `json:"credential"`
}

// OrderCompletedEvent is published when payment reconciliation
// completes an order and issues its tickets. It is denormalized so
// downstream consumers can build notifications without querying the
// primary database.
type OrderCompletedEvent struct {
	OrderID     uint64       `json:"order_id"`
	Reference   string       `json:"reference"`
	UserID      uint64       `json:"user_id"`
	Email       string       `json:"email"`
	FullName    string       `json:"full_name"`
	EventName   string       `json:"event_name"`
	Venue       string       `json:"venue"`
	StartsAt    string       `json:"starts_at"`
	Tickets     []TicketInfo `json:"tickets"`
	TotalCents  int64        `json:"total_cents"`
	Currency    string       `json:"currency"`
	CompletedAt string       `json:"completed_at"`
}
