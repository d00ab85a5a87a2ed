package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

// ErrTicketNotFound is returned when a ticket does not exist, has
// been soft-deleted, or a presented credential matches nothing.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepo provides access to the `tickets` table. State changes at
// the gate always run through the *Tx methods with the ticket row
// locked, so two scanners hitting the same credential serialize.
type TicketRepo struct{ db *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = "id, order_id, ticket_type_id, credential, state, checked_in_at, checked_in_by, checked_out_at, created_at"

func scanTicket(scan func(dest ...interface{}) error) (model.Ticket, error) {
	var t model.Ticket
	err := scan(&t.ID, &t.OrderID, &t.TicketTypeID, &t.Credential, &t.State,
		&t.CheckedInAt, &t.CheckedInBy, &t.CheckedOutAt, &t.CreatedAt)
	return t, err
}

// IssueBulkTx inserts one ticket row per unit in a single statement,
// inside the transaction that completed the order.
func (r *TicketRepo) IssueBulkTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (order_id, ticket_type_id, credential, state) VALUES `
	args := make([]interface{}, 0, len(tickets)*4)
	for i, t := range tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, t.OrderID, t.TicketTypeID, t.Credential, t.State)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// CountByOrderTx returns the number of live tickets on an order. The
// issuer uses it to make re-issuance a no-op.
func (r *TicketRepo) CountByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE order_id = ? AND deleted_at IS NULL`, orderID).Scan(&n)
	return n, err
}

// GetByID returns a live ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? AND deleted_at IS NULL`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByCredential resolves a presented credential without locking,
// for read-only status lookups at the gate.
func (r *TicketRepo) GetByCredential(ctx context.Context, credential string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE credential = ? AND deleted_at IS NULL`, credential).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByCredentialTx locks and returns the ticket for a presented
// credential so the gate decision and the state write happen under
// one lock.
func (r *TicketRepo) GetByCredentialTx(ctx context.Context, tx *sql.Tx, credential string) (*model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE credential = ? AND deleted_at IS NULL FOR UPDATE`, credential).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CheckInTx moves a locked ticket to checked_in and stamps who
// admitted it. The WHERE clause re-checks the state so a write racing
// past the lock loses with ErrConflict.
func (r *TicketRepo) CheckInTx(ctx context.Context, tx *sql.Tx, id, staffID uint64, fromState model.TicketState) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET state = ?, checked_in_at = UTC_TIMESTAMP(), checked_in_by = ?, checked_out_at = NULL
		 WHERE id = ? AND state = ?`,
		model.TicketCheckedIn, staffID, id, fromState)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CheckOutTx moves a locked ticket from checked_in to checked_out.
func (r *TicketRepo) CheckOutTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET state = ?, checked_out_at = UTC_TIMESTAMP() WHERE id = ? AND state = ?`,
		model.TicketCheckedOut, id, model.TicketCheckedIn)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// TicketFilter narrows List results. Zero values mean "no filter".
type TicketFilter struct {
	UserID  uint64
	OrderID uint64
	EventID uint64
	State   string
}

// TicketRow is a ticket joined with the names a holder actually wants
// to see on their wallet screen.
type TicketRow struct {
	model.Ticket
	EventID        uint64 `json:"event_id"`
	EventName      string `json:"event_name"`
	TicketTypeName string `json:"ticket_type_name"`
}

// List returns a page of tickets joined with event and type names,
// newest first, plus the total count. Holders set UserID so they only
// see tickets on their own orders.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter, skip, limit int) ([]TicketRow, int64, error) {
	cond := "t.deleted_at IS NULL"
	args := []interface{}{}
	if f.UserID != 0 {
		cond += " AND o.user_id = ?"
		args = append(args, f.UserID)
	}
	if f.OrderID != 0 {
		cond += " AND t.order_id = ?"
		args = append(args, f.OrderID)
	}
	if f.EventID != 0 {
		cond += " AND o.event_id = ?"
		args = append(args, f.EventID)
	}
	if f.State != "" {
		cond += " AND t.state = ?"
		args = append(args, f.State)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets t JOIN orders o ON o.id = t.order_id WHERE `+cond,
		args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.order_id, t.ticket_type_id, t.credential, t.state,
		        t.checked_in_at, t.checked_in_by, t.checked_out_at, t.created_at,
		        o.event_id, e.name, tt.name
		 FROM tickets t
		 JOIN orders o ON o.id = t.order_id
		 JOIN events e ON e.id = o.event_id
		 JOIN ticket_types tt ON tt.id = t.ticket_type_id
		 WHERE `+cond+`
		 ORDER BY t.created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]TicketRow, 0)
	for rows.Next() {
		var tr TicketRow
		if err := rows.Scan(&tr.ID, &tr.OrderID, &tr.TicketTypeID, &tr.Credential, &tr.State,
			&tr.CheckedInAt, &tr.CheckedInBy, &tr.CheckedOutAt, &tr.CreatedAt,
			&tr.EventID, &tr.EventName, &tr.TicketTypeName); err != nil {
			return nil, 0, err
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// OwnerID returns the user who holds the order the ticket sits on.
func (r *TicketRepo) OwnerID(ctx context.Context, ticketID uint64) (uint64, error) {
	var userID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT o.user_id FROM tickets t JOIN orders o ON o.id = t.order_id
		 WHERE t.id = ? AND t.deleted_at IS NULL`, ticketID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, ErrTicketNotFound
	}
	return userID, err
}

// GetForUpdateTx locks a ticket by ID for the transfer path.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ReassignOrderTx points a ticket at a different order. Used by the
// admin transfer flow after the receiving order has been created.
// Only tickets still in the issued state move.
func (r *TicketRepo) ReassignOrderTx(ctx context.Context, tx *sql.Tx, ticketID, newOrderID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET order_id = ? WHERE id = ? AND state = ? AND deleted_at IS NULL`,
		newOrderID, ticketID, model.TicketIssued)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
