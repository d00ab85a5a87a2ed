package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// TicketHandler serves the holder-facing ticket wallet endpoints.
type TicketHandler struct {
	Tickets *repository.TicketRepo
}

func NewTicketHandler(t *repository.TicketRepo) *TicketHandler {
	return &TicketHandler{Tickets: t}
}

// List returns the caller's tickets joined with event and type names.
// Admins see everyone's and may filter by order or event.
func (h *TicketHandler) List(c echo.Context) error {
	skip, limit := parsePagination(c)
	f := repository.TicketFilter{
		UserID: getUserID(c),
		State:  c.QueryParam("state"),
	}
	if isAdmin(c) {
		f.UserID = 0
	}
	if v := c.QueryParam("order_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.OrderID = id
		}
	}
	if v := c.QueryParam("event_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.EventID = id
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tickets, total, err := h.Tickets.List(ctx, f, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list tickets failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tickets": tickets,
		"total":   total,
		"skip":    skip,
		"limit":   limit,
	})
}

// Get returns one ticket. Holders only see tickets on their own
// orders.
func (h *TicketHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tickets.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket failed"})
	}
	owner, err := h.Tickets.OwnerID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket failed"})
	}
	if owner != getUserID(c) && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": t})
}
