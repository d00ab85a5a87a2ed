package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

func newAdminTest(t *testing.T) (*AdminHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &AdminHandler{Analytics: repository.NewAnalyticsRepo(db)}, mock
}

func statsContext(t *testing.T, eventID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(eventID)
	return c, rec
}

func TestAdminEventStatsByID(t *testing.T) {
	h, mock := newAdminTest(t)

	mock.ExpectQuery("FROM events e").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sold", "available", "checked_in", "revenue",
		}).AddRow(7, "Harare Jazz Night", 120, 30, 85, 1800000))

	c, rec := statsContext(t, "7")
	require.NoError(t, h.EventStatsByID(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Harare Jazz Night")
	assert.Contains(t, rec.Body.String(), `"tickets_sold":120`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminEventStatsByIDNotFound(t *testing.T) {
	h, mock := newAdminTest(t)

	mock.ExpectQuery("FROM events e").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sold", "available", "checked_in", "revenue",
		}))

	c, rec := statsContext(t, "404")
	require.NoError(t, h.EventStatsByID(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminEventStatsByIDBadID(t *testing.T) {
	h, _ := newAdminTest(t)

	c, rec := statsContext(t, "abc")
	require.NoError(t, h.EventStatsByID(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
