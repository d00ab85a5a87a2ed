package model

import "time"

// Event mirrors the `events` table. An event is owned by its organizer
// and carries zero or more ticket types that define pricing and
// capacity.
type Event struct {
	ID          uint64
	OrganizerID uint64
	Name        string
	Description string
	Venue       string
	StartsAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}
