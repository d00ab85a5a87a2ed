// Package handler contains the Echo HTTP handlers. Handlers bind and
// validate input, call repositories or services, and translate
// repository sentinel errors into HTTP status codes.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

const dbTimeout = 5 * time.Second

// reqCtx bounds a database call with the standard timeout.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// getUserID reads the authenticated user ID that JWTAuth stored in
// the context. JWT numeric claims decode as float64.
func getUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// getRole reads the authenticated role claim.
func getRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

// isAdmin reports whether the caller holds the admin role.
func isAdmin(c echo.Context) bool { return getRole(c) == model.RoleAdmin }

// parseID parses a numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// parsePagination reads skip/limit query parameters. Limit is clamped
// to [1, 100] with a default of 20.
func parsePagination(c echo.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.QueryParam("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return skip, limit
}

// parseTimeParam parses an optional RFC 3339 query parameter.
func parseTimeParam(c echo.Context, name string) *time.Time {
	v := c.QueryParam(name)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}
