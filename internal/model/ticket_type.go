package model

import "time"

// TicketType mirrors the `ticket_types` table. AvailableQuantity is
// the mutable inventory counter; it is only ever changed inside a
// transaction that holds a row lock on this row, so the invariant
// 0 <= available <= total survives concurrent checkouts and a
// multi-process deployment.
type TicketType struct {
	ID                uint64
	EventID           uint64
	Name              string
	Description       string
	PriceCents        int64
	TotalQuantity     int64
	AvailableQuantity int64
	SoldQuantity      int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}
