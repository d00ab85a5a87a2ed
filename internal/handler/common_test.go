package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, target string) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantSkip  int
		wantLimit int
	}{
		{"defaults", "/", 0, 20},
		{"explicit values", "/?skip=40&limit=10", 40, 10},
		{"negative skip clamped", "/?skip=-5", 0, 20},
		{"zero limit uses default", "/?limit=0", 0, 20},
		{"limit clamped to 100", "/?limit=500", 0, 100},
		{"garbage input", "/?skip=abc&limit=xyz", 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContext(t, tt.query)
			skip, limit := parsePagination(c)
			assert.Equal(t, tt.wantSkip, skip)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestParseTimeParam(t *testing.T) {
	c := testContext(t, "/?from=2026-08-01T00:00:00Z&bad=yesterday")

	got := parseTimeParam(c, "from")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), got.UTC())

	assert.Nil(t, parseTimeParam(c, "bad"))
	assert.Nil(t, parseTimeParam(c, "missing"))
}

func TestGetUserID(t *testing.T) {
	c := testContext(t, "/")

	// JWT numeric claims arrive as float64.
	c.Set("user_id", float64(42))
	assert.Equal(t, uint64(42), getUserID(c))

	c.Set("user_id", uint64(7))
	assert.Equal(t, uint64(7), getUserID(c))

	c.Set("user_id", "19")
	assert.Equal(t, uint64(19), getUserID(c))

	c.Set("user_id", "not-a-number")
	assert.Equal(t, uint64(0), getUserID(c))

	unset := testContext(t, "/")
	assert.Equal(t, uint64(0), getUserID(unset))
}

func TestGetRoleAndIsAdmin(t *testing.T) {
	c := testContext(t, "/")
	assert.Equal(t, "", getRole(c))
	assert.False(t, isAdmin(c))

	c.Set("role", "ADMIN")
	assert.Equal(t, "ADMIN", getRole(c))
	assert.True(t, isAdmin(c))

	c.Set("role", "CUSTOMER")
	assert.False(t, isAdmin(c))
}
