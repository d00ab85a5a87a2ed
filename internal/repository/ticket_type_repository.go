package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

// ErrTicketTypeNotFound is returned when a ticket type does not exist
// or has been soft-deleted.
var ErrTicketTypeNotFound = errors.New("ticket type not found")

// ErrDuplicateTicketType is returned when an event already has a
// ticket type with the same name.
var ErrDuplicateTicketType = errors.New("ticket type name already exists for this event")

// TicketTypeRepo is the inventory ledger. AvailableQuantity is only
// mutated through ReserveTx/ReleaseTx, both of which take the row
// lock on the ticket_types row, so two concurrent checkouts can never
// both win the last unit.
type TicketTypeRepo struct{ db *sql.DB }

func NewTicketTypeRepo(db *sql.DB) *TicketTypeRepo { return &TicketTypeRepo{db: db} }

func (r *TicketTypeRepo) DB() *sql.DB { return r.db }

const ticketTypeColumns = "id, event_id, name, description, price_cents, total_quantity, available_quantity, sold_quantity, created_at, updated_at"

func scanTicketType(scan func(dest ...interface{}) error) (model.TicketType, error) {
	var t model.TicketType
	err := scan(&t.ID, &t.EventID, &t.Name, &t.Description, &t.PriceCents,
		&t.TotalQuantity, &t.AvailableQuantity, &t.SoldQuantity, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Create inserts a ticket type with available = total and sold = 0.
// A duplicate name within the same event is rejected.
func (r *TicketTypeRepo) Create(ctx context.Context, t *model.TicketType) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ticket_types (event_id, name, description, price_cents, total_quantity, available_quantity, sold_quantity)
		 VALUES (?,?,?,?,?,?,0)`,
		t.EventID, t.Name, t.Description, t.PriceCents, t.TotalQuantity, t.TotalQuantity)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrDuplicateTicketType
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID returns a live ticket type or ErrTicketTypeNotFound.
func (r *TicketTypeRepo) GetByID(ctx context.Context, id uint64) (*model.TicketType, error) {
	t, err := scanTicketType(r.db.QueryRowContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ? AND deleted_at IS NULL`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByEvent returns all live ticket types for an event ordered by
// price ascending.
func (r *TicketTypeRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = ? AND deleted_at IS NULL ORDER BY price_cents ASC`,
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	types := make([]model.TicketType, 0)
	for rows.Next() {
		t, err := scanTicketType(rows.Scan)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// ReservationLine is one line item of a reservation request: quantity
// units of one ticket type.
type ReservationLine struct {
	TicketTypeID uint64
	Quantity     int64
}

// InsufficientInventoryError wraps ErrInsufficientInventory with the
// ticket type that could not satisfy the request, so handlers can
// tell the caller which line failed.
type InsufficientInventoryError struct {
	TicketTypeID uint64
	Requested    int64
	Available    int64
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for ticket type %d: requested %d, available %d",
		e.TicketTypeID, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

// ReserveTx atomically checks and decrements availability for every
// line of an order inside the caller's transaction. Lines MUST be
// sorted by ticket type ID before calling — all checkouts lock rows
// in the same order, which prevents lock-ordering deadlocks. Any
// shortfall aborts the whole reservation; the caller rolls back so no
// partial reservation survives.
func (r *TicketTypeRepo) ReserveTx(ctx context.Context, tx *sql.Tx, lines []ReservationLine) error {
	for _, line := range lines {
		var available int64
		err := tx.QueryRowContext(ctx,
			`SELECT available_quantity FROM ticket_types WHERE id = ? AND deleted_at IS NULL FOR UPDATE`,
			line.TicketTypeID).Scan(&available)
		if err == sql.ErrNoRows {
			return ErrTicketTypeNotFound
		}
		if err != nil {
			return err
		}
		if available < line.Quantity {
			return &InsufficientInventoryError{
				TicketTypeID: line.TicketTypeID,
				Requested:    line.Quantity,
				Available:    available,
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE ticket_types SET available_quantity = available_quantity - ?, sold_quantity = sold_quantity + ? WHERE id = ?`,
			line.Quantity, line.Quantity, line.TicketTypeID); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseTx returns previously reserved units to the ledger. It locks
// the order row first and consults orders.inventory_released, so a
// second release for the same order is a no-op — repeated failure
// webhooks or a cancel racing a failure cannot double-credit
// capacity. Must run inside the caller's transaction.
func (r *TicketTypeRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, orderID uint64, lines []ReservationLine) error {
	var released bool
	err := tx.QueryRowContext(ctx,
		`SELECT inventory_released FROM orders WHERE id = ? FOR UPDATE`, orderID).Scan(&released)
	if err != nil {
		return err
	}
	if released {
		return nil
	}
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx,
			`UPDATE ticket_types SET available_quantity = LEAST(total_quantity, available_quantity + ?), sold_quantity = sold_quantity - ? WHERE id = ?`,
			line.Quantity, line.Quantity, line.TicketTypeID); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET inventory_released = 1 WHERE id = ?`, orderID)
	return err
}

// Update rewrites the descriptive columns of a ticket type. Capacity
// changes go through the ledger invariant: total can grow, and can
// shrink only down to the sold count.
func (r *TicketTypeRepo) Update(ctx context.Context, t *model.TicketType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var sold int64
	err = tx.QueryRowContext(ctx,
		`SELECT sold_quantity FROM ticket_types WHERE id = ? AND deleted_at IS NULL FOR UPDATE`,
		t.ID).Scan(&sold)
	if err == sql.ErrNoRows {
		return ErrTicketTypeNotFound
	}
	if err != nil {
		return err
	}
	if t.TotalQuantity < sold {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ticket_types SET name = ?, description = ?, price_cents = ?, total_quantity = ?, available_quantity = ? - sold_quantity WHERE id = ?`,
		t.Name, t.Description, t.PriceCents, t.TotalQuantity, t.TotalQuantity, t.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SoftDelete tombstones a ticket type. Types with sold units keep
// their rows forever; only unsold types may be removed.
func (r *TicketTypeRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ticket_types SET deleted_at = UTC_TIMESTAMP() WHERE id = ? AND deleted_at IS NULL AND sold_quantity = 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or has sold units; disambiguate for the handler.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}
