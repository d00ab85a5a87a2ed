// Package repository defines error values that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers and services to distinguish between different
// failure scenarios, e.g. ErrConflict signals that a state transition
// was attempted from the wrong state (double check-in, cancelling a
// completed order).
package repository

import "errors"

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as checking in a ticket that is already
// checked in. Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrInsufficientInventory is returned by the inventory ledger when a
// reservation asks for more units than a ticket type has available.
// The whole order creation must be rolled back.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// ErrDuplicateEvent is returned when a provider webhook event has
// already been recorded in the webhook_events ledger.
var ErrDuplicateEvent = errors.New("duplicate provider event")
