package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

var gateNow = time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)

func newGateTest(t *testing.T) (*ValidationHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewValidationHandler(
		repository.NewTicketRepo(db),
		repository.NewOrderRepo(db),
		repository.NewEventRepo(db),
	), mock
}

func gateContext(t *testing.T, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"credential":"cred-a"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("user_id", float64(userID))
	c.Set("role", role)
	return c, rec
}

func gateTicketRow(state model.TicketState) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_id", "ticket_type_id", "credential", "state",
		"checked_in_at", "checked_in_by", "checked_out_at", "created_at",
	}).AddRow(3, 9, 4, "cred-a", string(state), nil, nil, nil, gateNow)
}

func gateOrderRow(status model.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "user_id", "event_id", "status", "total_cents",
		"currency", "inventory_released", "tickets_issued", "created_at", "updated_at",
	}).AddRow(9, "REF123", 42, 7, string(status), 15000, "USD", false, true, gateNow, gateNow)
}

func gateEventRow(organizerID uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organizer_id", "name", "description", "venue", "starts_at", "created_at", "updated_at",
	}).AddRow(7, organizerID, "Harare Jazz Night", "", "7 Arts", gateNow, gateNow, gateNow)
}

// Organizers may only look up tickets for their own events; admins
// may look up any.
func TestGateStatusOwnership(t *testing.T) {
	tests := []struct {
		name      string
		role      string
		organizer uint64
		wantCode  int
	}{
		{"foreign organizer rejected", model.RoleOrganizer, 99, http.StatusForbidden},
		{"owning organizer allowed", model.RoleOrganizer, 42, http.StatusOK},
		{"admin bypasses ownership", model.RoleAdmin, 99, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock := newGateTest(t)

			mock.ExpectQuery("FROM tickets WHERE credential").
				WillReturnRows(gateTicketRow(model.TicketIssued))
			mock.ExpectQuery("FROM orders WHERE id").
				WillReturnRows(gateOrderRow(model.OrderCompleted))
			if tt.role != model.RoleAdmin {
				mock.ExpectQuery("FROM events WHERE id").
					WillReturnRows(gateEventRow(tt.organizer))
			}

			c, rec := gateContext(t, 42, tt.role)
			require.NoError(t, h.Status(c))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// A foreign organizer cannot move ticket state either; the
// transaction rolls back without touching the row.
func TestGateCheckInForeignOrganizerRollsBack(t *testing.T) {
	h, mock := newGateTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tickets WHERE credential").
		WillReturnRows(gateTicketRow(model.TicketIssued))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(gateOrderRow(model.OrderCompleted))
	mock.ExpectQuery("FROM events WHERE id").
		WillReturnRows(gateEventRow(99))
	mock.ExpectRollback()

	c, rec := gateContext(t, 42, model.RoleOrganizer)
	require.NoError(t, h.CheckIn(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGateCheckInAdmits(t *testing.T) {
	h, mock := newGateTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tickets WHERE credential").
		WillReturnRows(gateTicketRow(model.TicketIssued))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(gateOrderRow(model.OrderCompleted))
	mock.ExpectExec("UPDATE tickets SET state").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := gateContext(t, 1, model.RoleAdmin)
	require.NoError(t, h.CheckIn(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, rec.Body.String(), string(model.TicketCheckedIn))
}

// Two scanners racing on the same credential: the loser's guarded
// UPDATE affects zero rows and the gate answers with a conflict.
func TestGateCheckInRaceLoserConflicts(t *testing.T) {
	h, mock := newGateTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tickets WHERE credential").
		WillReturnRows(gateTicketRow(model.TicketIssued))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(gateOrderRow(model.OrderCompleted))
	mock.ExpectExec("UPDATE tickets SET state").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c, rec := gateContext(t, 1, model.RoleAdmin)
	require.NoError(t, h.CheckIn(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Tickets on refunded orders keep their rows but no longer admit.
func TestGateCheckInRejectsRefundedOrder(t *testing.T) {
	h, mock := newGateTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tickets WHERE credential").
		WillReturnRows(gateTicketRow(model.TicketIssued))
	mock.ExpectQuery("FROM orders WHERE id").
		WillReturnRows(gateOrderRow(model.OrderRefunded))
	mock.ExpectRollback()

	c, rec := gateContext(t, 1, model.RoleAdmin)
	require.NoError(t, h.CheckIn(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
