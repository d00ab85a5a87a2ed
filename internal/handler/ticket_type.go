package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// TicketTypeHandler manages the inventory definitions under an event.
type TicketTypeHandler struct {
	Events      *repository.EventRepo
	TicketTypes *repository.TicketTypeRepo
}

func NewTicketTypeHandler(e *repository.EventRepo, tt *repository.TicketTypeRepo) *TicketTypeHandler {
	return &TicketTypeHandler{Events: e, TicketTypes: tt}
}

type ticketTypeReq struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	PriceCents    int64  `json:"price_cents"`
	TotalQuantity int64  `json:"total_quantity"`
}

func (r *ticketTypeReq) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Name == "":
		return "name required"
	case r.PriceCents < 0:
		return "price_cents must not be negative"
	case r.TotalQuantity <= 0:
		return "total_quantity must be positive"
	}
	return ""
}

// loadOwnedEvent fetches the event and enforces that the caller owns
// it (or is an admin). It writes the error response itself and
// returns nil when the request should stop.
func (h *TicketTypeHandler) loadOwnedEvent(c echo.Context, eventID uint64) *model.Event {
	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		if err == repository.ErrEventNotFound {
			_ = c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
		}
		return nil
	}
	if e.OrganizerID != getUserID(c) && !isAdmin(c) {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		return nil
	}
	return e
}

// Create adds a ticket type to an owned event. The full quantity
// starts available.
func (h *TicketTypeHandler) Create(c echo.Context) error {
	eventID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req ticketTypeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if h.loadOwnedEvent(c, eventID) == nil {
		return nil
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t := &model.TicketType{
		EventID:           eventID,
		Name:              req.Name,
		Description:       req.Description,
		PriceCents:        req.PriceCents,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
	}
	id, err := h.TicketTypes.Create(ctx, t)
	if err != nil {
		if err == repository.ErrDuplicateTicketType {
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket type name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create ticket type failed"})
	}
	t.ID = id
	return c.JSON(http.StatusCreated, echo.Map{"ticket_type": t})
}

// Update rewrites a ticket type. Total capacity may grow freely but
// can only shrink down to the number already sold.
func (h *TicketTypeHandler) Update(c echo.Context) error {
	eventID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	typeID, err := parseID(c, "type_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket type id"})
	}
	var req ticketTypeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if h.loadOwnedEvent(c, eventID) == nil {
		return nil
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.TicketTypes.GetByID(ctx, typeID)
	if err != nil {
		if err == repository.ErrTicketTypeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket type failed"})
	}
	if t.EventID != eventID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
	}

	t.Name = req.Name
	t.Description = req.Description
	t.PriceCents = req.PriceCents
	t.TotalQuantity = req.TotalQuantity
	if err := h.TicketTypes.Update(ctx, t); err != nil {
		switch err {
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "total_quantity below sold count"})
		case repository.ErrTicketTypeNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update ticket type failed"})
	}
	t.AvailableQuantity = t.TotalQuantity - t.SoldQuantity
	return c.JSON(http.StatusOK, echo.Map{"ticket_type": t})
}

// Delete tombstones an unsold ticket type.
func (h *TicketTypeHandler) Delete(c echo.Context) error {
	eventID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	typeID, err := parseID(c, "type_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket type id"})
	}
	if h.loadOwnedEvent(c, eventID) == nil {
		return nil
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.TicketTypes.GetByID(ctx, typeID)
	if err != nil {
		if err == repository.ErrTicketTypeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket type failed"})
	}
	if t.EventID != eventID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
	}

	if err := h.TicketTypes.SoftDelete(ctx, typeID); err != nil {
		switch err {
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket type has sold units"})
		case repository.ErrTicketTypeNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete ticket type failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
