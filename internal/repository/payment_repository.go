package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

// ErrPaymentNotFound is returned when a payment transaction does not
// exist.
var ErrPaymentNotFound = errors.New("payment transaction not found")

// PaymentRepo provides access to the `payment_transactions` and
// `webhook_events` tables. One transaction row exists per order and
// carries the full provider lifecycle on it.
type PaymentRepo struct{ db *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) DB() *sql.DB { return r.db }

const paymentColumns = "id, order_id, provider_ref, amount_cents, currency, status, provider_customer, provider_charge, refund_ref, last_error, created_at, updated_at"

func scanPayment(scan func(dest ...interface{}) error) (model.PaymentTransaction, error) {
	var p model.PaymentTransaction
	var providerRef, providerCustomer, providerCharge, refundRef, lastError sql.NullString
	err := scan(&p.ID, &p.OrderID, &providerRef, &p.AmountCents, &p.Currency, &p.Status,
		&providerCustomer, &providerCharge, &refundRef, &lastError, &p.CreatedAt, &p.UpdatedAt)
	p.ProviderRef = providerRef.String
	p.ProviderCustomer = providerCustomer.String
	p.ProviderCharge = providerCharge.String
	p.RefundRef = refundRef.String
	p.LastError = lastError.String
	return p, err
}

// CreateTx inserts the payment transaction row for a freshly created
// order, inside the same transaction that reserved inventory.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PaymentTransaction) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payment_transactions (order_id, amount_cents, currency, status) VALUES (?,?,?,?)`,
		p.OrderID, p.AmountCents, p.Currency, p.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByOrderID returns the payment transaction for an order.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID uint64) (*model.PaymentTransaction, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE order_id = ?`, orderID).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByProviderRefTx locks and returns the payment row matching a
// provider intent reference. The reconciler holds this lock while it
// decides the transition, so two deliveries of the same webhook
// serialize instead of racing.
func (r *PaymentRepo) GetByProviderRefTx(ctx context.Context, tx *sql.Tx, providerRef string) (*model.PaymentTransaction, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE provider_ref = ? FOR UPDATE`, providerRef).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetIntent records the provider's intent reference after a
// successful CreateIntent call and moves the transaction to
// processing. The unique index on provider_ref rejects a second
// intent being attached to another order.
func (r *PaymentRepo) SetIntent(ctx context.Context, id uint64, providerRef string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_transactions SET provider_ref = ?, status = ? WHERE id = ? AND status = ?`,
		providerRef, model.PaymentProcessing, id, model.PaymentRequiresPayment)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
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

// UpdateStatusTx writes the terminal outcome of a payment along with
// whatever provider identifiers the event carried. Empty strings
// leave the existing values in place.
func (r *PaymentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PaymentStatus, providerCustomer, providerCharge, lastError string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payment_transactions SET
		   status = ?,
		   provider_customer = COALESCE(NULLIF(?, ''), provider_customer),
		   provider_charge   = COALESCE(NULLIF(?, ''), provider_charge),
		   last_error        = NULLIF(?, '')
		 WHERE id = ?`,
		status, providerCustomer, providerCharge, lastError, id)
	return err
}

// SetRefundTx records a refund reference and moves the transaction to
// refunded, inside the same transaction that flips the order.
func (r *PaymentRepo) SetRefundTx(ctx context.Context, tx *sql.Tx, id uint64, refundRef string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_transactions SET status = ?, refund_ref = ? WHERE id = ? AND status = ?`,
		model.PaymentRefunded, refundRef, id, model.PaymentSucceeded)
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

// RecordWebhookEvent inserts the provider event ID into the dedup
// table. The unique index makes the second insert of the same event
// fail with ErrDuplicateEvent, which the reconciler treats as an
// already-processed delivery.
func (r *PaymentRepo) RecordWebhookEvent(ctx context.Context, tx *sql.Tx, eventID, eventType string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, event_type) VALUES (?,?)`, eventID, eventType)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrDuplicateEvent
	}
	return err
}
