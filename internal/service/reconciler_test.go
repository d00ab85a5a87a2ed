package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/payment"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

func newReconcilerTest(t *testing.T) (*Reconciler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	orders := repository.NewOrderRepo(db)
	payments := repository.NewPaymentRepo(db)
	types := repository.NewTicketTypeRepo(db)
	users := repository.NewUserRepo(db)
	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	issuer := NewIssuer(orders, tickets)
	return NewReconciler(orders, payments, types, users, events, issuer, nil, nil), mock
}

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func paymentRow(status model.PaymentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_id", "provider_ref", "amount_cents", "currency", "status",
		"provider_customer", "provider_charge", "refund_ref", "last_error",
		"created_at", "updated_at",
	}).AddRow(5, 9, "pi_1", 15000, "USD", string(status), nil, nil, nil, nil, testNow, testNow)
}

func orderRow(status model.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "user_id", "event_id", "status", "total_cents",
		"currency", "inventory_released", "tickets_issued", "created_at", "updated_at",
	}).AddRow(9, "REF123", 42, 7, string(status), 15000, "USD", false, false, testNow, testNow)
}

func succeededEvent(id string) *payment.Event {
	return &payment.Event{
		EventID: id,
		Type:    payment.EventPaymentSucceeded,
		Data:    payment.EventData{IntentID: "pi_1", ChargeID: "ch_1", CustomerID: "cus_1"},
	}
}

// An order the user already cancelled must not surface provider
// callbacks as errors: the provider would redeliver forever. The
// delivery is acknowledged and the dedup row kept.
func TestReconcilerAcksEventsForCancelledOrder(t *testing.T) {
	for _, eventType := range []string{payment.EventPaymentSucceeded, payment.EventPaymentFailed} {
		t.Run(eventType, func(t *testing.T) {
			rec, mock := newReconcilerTest(t)

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO webhook_events").
				WithArgs("evt_1", eventType).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectQuery("FROM payment_transactions WHERE provider_ref").
				WithArgs("pi_1").
				WillReturnRows(paymentRow(model.PaymentProcessing))
			mock.ExpectQuery("FROM orders WHERE id").
				WillReturnRows(orderRow(model.OrderCancelled))
			mock.ExpectCommit()

			ev := &payment.Event{
				EventID: "evt_1",
				Type:    eventType,
				Data:    payment.EventData{IntentID: "pi_1"},
			}
			outcome, err := rec.HandleEvent(context.Background(), ev)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, outcome)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// A redelivered success for an already-succeeded payment is a no-op:
// no second completed transition, no second set of tickets.
func TestReconcilerReplayedSuccessIsDuplicate(t *testing.T) {
	rec, mock := newReconcilerTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs("evt_2", payment.EventPaymentSucceeded).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectQuery("FROM payment_transactions WHERE provider_ref").
		WithArgs("pi_1").
		WillReturnRows(paymentRow(model.PaymentSucceeded))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(orderRow(model.OrderCompleted))
	mock.ExpectCommit()

	outcome, err := rec.HandleEvent(context.Background(), succeededEvent("evt_2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The webhook_events unique index is the durable dedup layer behind
// the Redis fast path. A second insert of the same delivery ID rolls
// back and acknowledges.
func TestReconcilerDuplicateDeliveryHitsLedger(t *testing.T) {
	rec, mock := newReconcilerTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs("evt_1", payment.EventPaymentSucceeded).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'evt_1' for key 'uq_webhook_events_event'"))
	mock.ExpectRollback()

	outcome, err := rec.HandleEvent(context.Background(), succeededEvent("evt_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failure notification flips payment and order to failed and
// returns every reserved unit to the ledger in the same transaction.
func TestReconcilerFailureReleasesInventory(t *testing.T) {
	rec, mock := newReconcilerTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs("evt_3", payment.EventPaymentFailed).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery("FROM payment_transactions WHERE provider_ref").
		WithArgs("pi_1").
		WillReturnRows(paymentRow(model.PaymentProcessing))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(orderRow(model.OrderProcessing))
	mock.ExpectExec("UPDATE payment_transactions SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(model.OrderFailed), uint64(9), string(model.OrderProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM order_items WHERE order_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "quantity", "unit_price_cents"}).
			AddRow(1, 9, 3, 2, 5000).
			AddRow(2, 9, 4, 1, 5000))
	mock.ExpectQuery("SELECT inventory_released FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"inventory_released"}).AddRow(false))
	mock.ExpectExec("UPDATE ticket_types SET available_quantity").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE ticket_types SET available_quantity").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET inventory_released").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ev := &payment.Event{
		EventID: "evt_3",
		Type:    payment.EventPaymentFailed,
		Data:    payment.EventData{IntentID: "pi_1", FailureMessage: "card_declined"},
	}
	outcome, err := rec.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The happy path: success completes the order and issues one ticket
// per reserved unit inside the same transaction.
func TestReconcilerSuccessCompletesAndIssues(t *testing.T) {
	rec, mock := newReconcilerTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs("evt_4", payment.EventPaymentSucceeded).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery("FROM payment_transactions WHERE provider_ref").
		WithArgs("pi_1").
		WillReturnRows(paymentRow(model.PaymentProcessing))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(orderRow(model.OrderProcessing))
	mock.ExpectExec("UPDATE payment_transactions SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(model.OrderCompleted), uint64(9), string(model.OrderProcessing)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM tickets WHERE order_id").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM order_items WHERE order_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "ticket_type_id", "quantity", "unit_price_cents"}).
			AddRow(1, 9, 3, 2, 7500))
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("UPDATE orders SET tickets_issued").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// The post-commit notification loads the customer; failing that
	// lookup only skips the mail, the order stays completed.
	mock.ExpectQuery("FROM users").
		WillReturnError(sql.ErrConnDone)

	outcome, err := rec.HandleEvent(context.Background(), succeededEvent("evt_4"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}
