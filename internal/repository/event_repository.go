package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

// ErrEventNotFound is returned when an event does not exist or has
// been soft-deleted.
var ErrEventNotFound = errors.New("event not found")

// EventRepo provides CRUD operations for events. Deletes are soft:
// the row keeps a deleted_at tombstone for audit and refund
// traceability.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = "id, organizer_id, name, description, venue, starts_at, created_at, updated_at"

// Create inserts a new event owned by the given organizer and returns
// its generated ID.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (organizer_id, name, description, venue, starts_at) VALUES (?,?,?,?,?)`,
		e.OrganizerID, e.Name, e.Description, e.Venue, e.StartsAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns a live event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Description, &e.Venue, &e.StartsAt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EventFilter narrows List results. Zero values mean "no filter".
type EventFilter struct {
	OrganizerID uint64
	Search      string
	From        *time.Time
	To          *time.Time
}

// List returns a page of live events ordered by start time, newest
// first, plus the total row count for pagination metadata.
func (r *EventRepo) List(ctx context.Context, f EventFilter, skip, limit int) ([]model.Event, int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}
	if f.OrganizerID != 0 {
		where = append(where, "organizer_id = ?")
		args = append(args, f.OrganizerID)
	}
	if f.Search != "" {
		where = append(where, "(name LIKE ? OR venue LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}
	if f.From != nil {
		where = append(where, "starts_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "starts_at <= ?")
		args = append(args, f.To.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + eventColumns + " FROM events WHERE " + cond +
		" ORDER BY starts_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Description, &e.Venue,
			&e.StartsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Update rewrites the mutable columns of an event. The caller is
// responsible for the ownership check.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, description = ?, venue = ?, starts_at = ? WHERE id = ? AND deleted_at IS NULL`,
		e.Name, e.Description, e.Venue, e.StartsAt.UTC(), e.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SoftDelete tombstones an event. Events with live orders cannot be
// removed; the caller should surface ErrConflict.
func (r *EventRepo) SoftDelete(ctx context.Context, id uint64) error {
	var live int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE event_id = ? AND deleted_at IS NULL AND status IN ('pending','processing','completed')`,
		id).Scan(&live); err != nil {
		return err
	}
	if live > 0 {
		return ErrConflict
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET deleted_at = UTC_TIMESTAMP() WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
