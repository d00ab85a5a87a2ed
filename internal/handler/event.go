package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// EventHandler serves the public catalog and the organizer CRUD
// endpoints.
type EventHandler struct {
	Events      *repository.EventRepo
	TicketTypes *repository.TicketTypeRepo
}

func NewEventHandler(e *repository.EventRepo, tt *repository.TicketTypeRepo) *EventHandler {
	return &EventHandler{Events: e, TicketTypes: tt}
}

type eventReq struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"starts_at"`
}

func (r *eventReq) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	r.Venue = strings.TrimSpace(r.Venue)
	switch {
	case r.Name == "":
		return "name required"
	case r.Venue == "":
		return "venue required"
	case r.StartsAt.IsZero():
		return "starts_at required"
	}
	return ""
}

// List is the public catalog. Results are paginated and filterable by
// search text, organizer and date range; this route sits behind the
// response cache.
func (h *EventHandler) List(c echo.Context) error {
	skip, limit := parsePagination(c)
	f := repository.EventFilter{
		Search: strings.TrimSpace(c.QueryParam("q")),
		From:   parseTimeParam(c, "from"),
		To:     parseTimeParam(c, "to"),
	}
	if v := c.QueryParam("organizer_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.OrganizerID = id
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	events, total, err := h.Events.List(ctx, f, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"total":  total,
		"skip":   skip,
		"limit":  limit,
	})
}

// Get returns one event with its ticket types.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	types, err := h.TicketTypes.ListByEvent(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket types failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event":        e,
		"ticket_types": types,
	})
}

// Create registers a new event owned by the calling organizer.
func (h *EventHandler) Create(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e := &model.Event{
		OrganizerID: getUserID(c),
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
	}
	id, err := h.Events.Create(ctx, e)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
	}
	e.ID = id
	return c.JSON(http.StatusCreated, echo.Map{"event": e})
}

// Update rewrites an event. Only the owning organizer or an admin may
// modify it.
func (h *EventHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if e.OrganizerID != getUserID(c) && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	e.Name = req.Name
	e.Description = req.Description
	e.Venue = req.Venue
	e.StartsAt = req.StartsAt
	if err := h.Events.Update(ctx, e); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update event failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"event": e})
}

// Delete tombstones an event. Events with live orders are protected.
func (h *EventHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if e.OrganizerID != getUserID(c) && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	if err := h.Events.SoftDelete(ctx, id); err != nil {
		switch err {
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "event has live orders"})
		case repository.ErrEventNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete event failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine lists the calling organizer's own events, including ones not
// yet visible in the public catalog.
func (h *EventHandler) Mine(c echo.Context) error {
	skip, limit := parsePagination(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	events, total, err := h.Events.List(ctx, repository.EventFilter{OrganizerID: getUserID(c)}, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list events failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"total":  total,
		"skip":   skip,
		"limit":  limit,
	})
}
