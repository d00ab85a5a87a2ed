package model

import "time"

// OrderStatus is the closed set of payment statuses an order moves
// through. Transitions are driven by provider webhooks and explicit
// user/admin actions and are validated by CanTransition before any
// row is written.
type OrderStatus string

const (
	// OrderPending is the initial status: the order and its payment
	// transaction exist and inventory is reserved, but no payment
	// attempt has started.
	OrderPending OrderStatus = "pending"
	// OrderProcessing means a payment intent was created with the
	// provider and the outcome is awaited.
	OrderProcessing OrderStatus = "processing"
	// OrderCompleted is reached only via an authenticated success
	// notification; tickets are issued on this transition.
	OrderCompleted OrderStatus = "completed"
	// OrderFailed is set on a failure notification; reserved
	// inventory is returned.
	OrderFailed OrderStatus = "failed"
	// OrderCancelled is set by an explicit cancel before any success
	// notification; reserved inventory is returned.
	OrderCancelled OrderStatus = "cancelled"
	// OrderRefunded is reached from completed via an explicit refund.
	// Inventory is NOT returned: the tickets were sold and are
	// invalidated separately, never resold.
	OrderRefunded OrderStatus = "refunded"
)

// Terminal reports whether no further capacity-affecting mutation is
// permitted for an order in this status. completed is terminal for
// inventory purposes even though refunded can still follow it.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// CanTransition reports whether moving an order from one status to
// another is legal. The webhook reconciler and the cancel/refund
// handlers all consult this single table so a transition attempted
// from the wrong state is rejected uniformly.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPending:
		return to == OrderProcessing || to == OrderCancelled || to == OrderFailed
	case OrderProcessing:
		return to == OrderCompleted || to == OrderFailed || to == OrderCancelled
	case OrderCompleted:
		return to == OrderRefunded
	}
	return false
}

// ValidOrderStatus reports whether s is a member of the closed status
// set. Used when filtering list queries by a caller-supplied status.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderPending, OrderProcessing, OrderCompleted, OrderFailed, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// Order mirrors the `orders` table. Reference is a short nanoid shown
// to customers and embedded in provider metadata. InventoryReleased
// guards the release path: it is checked and set while the order row
// is locked, making release idempotent per order. TicketsIssued marks
// that issuance ran for this order; the repair pass only considers
// completed orders with the flag unset, so an order whose tickets were
// later transferred away is never re-issued.
type Order struct {
	ID                uint64
	Reference         string
	UserID            uint64
	EventID           uint64
	Status            OrderStatus
	TotalCents        int64
	Currency          string
	InventoryReleased bool
	TicketsIssued     bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// OrderItem mirrors the `order_items` table: one line per ticket type
// in a checkout, quantity units at the unit price captured when the
// order was created.
type OrderItem struct {
	ID             uint64
	OrderID        uint64
	TicketTypeID   uint64
	Quantity       int64
	UnitPriceCents int64
}
