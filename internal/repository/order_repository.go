package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

// ErrOrderNotFound is returned when an order does not exist or has
// been soft-deleted.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepo provides access to the `orders` and `order_items` tables.
// All status writes go through UpdateStatusTx so the state machine in
// model.CanTransition is the single gatekeeper.
type OrderRepo struct{ db *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = "id, reference, user_id, event_id, status, total_cents, currency, inventory_released, tickets_issued, created_at, updated_at"

func scanOrder(scan func(dest ...interface{}) error) (model.Order, error) {
	var o model.Order
	err := scan(&o.ID, &o.Reference, &o.UserID, &o.EventID, &o.Status, &o.TotalCents,
		&o.Currency, &o.InventoryReleased, &o.TicketsIssued, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateTx inserts an order and its line items within an existing
// transaction. The generated order ID is written back to the order
// and every item. The caller must commit or roll back.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order, items []model.OrderItem) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (reference, user_id, event_id, status, total_cents, currency) VALUES (?,?,?,?,?,?)`,
		o.Reference, o.UserID, o.EventID, o.Status, o.TotalCents, o.Currency)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, ticket_type_id, quantity, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		items[i].OrderID = o.ID
		args = append(args, o.ID, items[i].TicketTypeID, items[i].Quantity, items[i].UnitPriceCents)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID returns a live order or ErrOrderNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND deleted_at IS NULL`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdateTx loads an order with its row locked so a status
// transition can be decided and written without a concurrent writer
// interleaving. Soft-deleted orders are still visible here: a
// cancelled (tombstoned) order must keep rejecting webhooks by
// status, not vanish.
func (r *OrderRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatusTx advances an order's status inside a transaction. The
// WHERE clause re-checks the expected current status so a racing
// writer that slipped in between load and write loses cleanly with
// ErrConflict instead of clobbering the row.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.OrderStatus) error {
	if !model.CanTransition(from, to) {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`, to, id, from)
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

// SoftDeleteTx tombstones an order, typically together with a
// transition to cancelled.
func (r *OrderRepo) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET deleted_at = UTC_TIMESTAMP() WHERE id = ? AND deleted_at IS NULL`, id)
	return err
}

// Items returns the line items of an order.
func (r *OrderRepo) Items(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	return r.itemsQuery(ctx, r.db.QueryContext, orderID)
}

// ItemsTx is Items inside an existing transaction, used when the
// reconciler needs the reservation lines for a release.
func (r *OrderRepo) ItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.OrderItem, error) {
	return r.itemsQuery(ctx, tx.QueryContext, orderID)
}

type queryFunc func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

func (r *OrderRepo) itemsQuery(ctx context.Context, query queryFunc, orderID uint64) ([]model.OrderItem, error) {
	rows, err := query(ctx,
		`SELECT id, order_id, ticket_type_id, quantity, unit_price_cents FROM order_items WHERE order_id = ? ORDER BY ticket_type_id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.OrderItem, 0)
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TicketTypeID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// HasOpenOrder reports whether the user already has a pending or
// processing order for the event. Checkout rejects duplicates so a
// double-submitted form does not reserve inventory twice.
func (r *OrderRepo) HasOpenOrder(ctx context.Context, userID, eventID uint64) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ? AND event_id = ? AND deleted_at IS NULL AND status IN ('pending','processing')`,
		userID, eventID).Scan(&n)
	return n > 0, err
}

// OrderFilter narrows List results. Zero values mean "no filter".
type OrderFilter struct {
	UserID  uint64
	EventID uint64
	Status  string
	From    *time.Time
	To      *time.Time
}

// List returns a page of live orders, newest first, plus the total
// count. Non-admin callers set UserID so they only see their own.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter, skip, limit int) ([]model.Order, int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.EventID != 0 {
		where = append(where, "event_id = ?")
		args = append(args, f.EventID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE "+cond+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CompletedWithoutTickets returns IDs of completed orders that never
// went through issuance. Issuance is transactional with the completed
// write, so this should always come back empty; the repair pass
// re-issues for anything that slips through (e.g. rows restored from
// backup). The flag, not a ticket count, drives the scan: an order
// whose tickets were transferred away keeps the flag and is left
// alone.
func (r *OrderRepo) CompletedWithoutTickets(ctx context.Context, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM orders
		 WHERE status = 'completed' AND deleted_at IS NULL AND tickets_issued = 0
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkTicketsIssuedTx records that issuance ran for an order,
// excluding it from future repair scans.
func (r *OrderRepo) MarkTicketsIssuedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET tickets_issued = 1 WHERE id = ?`, id)
	return err
}

// CreateTransferTx inserts a zero-cost completed order used as the
// receiving side of an admin ticket transfer. The order receives an
// existing ticket, so it is created with tickets_issued already set.
func (r *OrderRepo) CreateTransferTx(ctx context.Context, tx *sql.Tx, reference string, userID, eventID uint64, currency string) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (reference, user_id, event_id, status, total_cents, currency, tickets_issued) VALUES (?,?,?,'completed',0,?,1)`,
		reference, userID, eventID, currency)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
