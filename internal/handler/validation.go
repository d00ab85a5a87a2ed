package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/monitoring"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// ValidationHandler is the venue gate. Scanners post a credential and
// get the admit/deny decision; state changes run with the ticket row
// locked so two gates scanning the same ticket serialize. Organizers
// only operate the doors of their own events; admins operate any.
type ValidationHandler struct {
	Tickets *repository.TicketRepo
	Orders  *repository.OrderRepo
	Events  *repository.EventRepo
}

func NewValidationHandler(t *repository.TicketRepo, o *repository.OrderRepo, e *repository.EventRepo) *ValidationHandler {
	return &ValidationHandler{Tickets: t, Orders: o, Events: e}
}

// requireGateAccess checks that the caller organizes the event the
// scanned ticket belongs to; admins pass unconditionally. It writes
// the error response itself and reports whether the request may
// continue.
func (h *ValidationHandler) requireGateAccess(c echo.Context, eventID uint64) bool {
	if isAdmin(c) {
		return true
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, eventID)
	if err != nil {
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
		return false
	}
	if e.OrganizerID != getUserID(c) {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		return false
	}
	return true
}

type credentialReq struct {
	Credential string `json:"credential"`
}

func (r *credentialReq) validate() bool {
	r.Credential = strings.TrimSpace(r.Credential)
	return r.Credential != ""
}

type gateTicket struct {
	TicketID uint64            `json:"ticket_id"`
	State    model.TicketState `json:"state"`
}

// Status is the read-only lookup: the gate shows the ticket's current
// state without changing it.
func (h *ValidationHandler) Status(c echo.Context) error {
	var req credentialReq
	if err := c.Bind(&req); err != nil || !req.validate() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credential required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tickets.GetByCredential(ctx, req.Credential)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	order, err := h.Orders.GetByID(ctx, t.OrderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if !h.requireGateAccess(c, order.EventID) {
		return nil
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket": gateTicket{TicketID: t.ID, State: t.State},
	})
}

// CheckIn admits a ticket holder. Fresh tickets and previously
// checked-out tickets are admitted; a ticket already inside is
// rejected so a copied credential cannot follow its owner in.
func (h *ValidationHandler) CheckIn(c echo.Context) error {
	var req credentialReq
	if err := c.Bind(&req); err != nil || !req.validate() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credential required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tx, err := h.Tickets.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := h.Tickets.GetByCredentialTx(ctx, tx, req.Credential)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			monitoring.TrackGateScan("check_in", "not_found")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}

	// Refunded orders keep their ticket rows but those tickets no
	// longer admit.
	order, err := h.Orders.GetForUpdateTx(ctx, tx, t.OrderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	if !h.requireGateAccess(c, order.EventID) {
		return nil
	}
	if order.Status != model.OrderCompleted {
		monitoring.TrackGateScan("check_in", "rejected")
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket order is not valid for entry"})
	}

	if !model.CanCheckIn(t.State) {
		monitoring.TrackGateScan("check_in", "rejected")
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "ticket already checked in",
			"state": t.State,
		})
	}
	if err := h.Tickets.CheckInTx(ctx, tx, t.ID, getUserID(c), t.State); err != nil {
		if err == repository.ErrConflict {
			monitoring.TrackGateScan("check_in", "rejected")
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already checked in"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
	committed = true
	monitoring.TrackGateScan("check_in", "admitted")

	return c.JSON(http.StatusOK, echo.Map{
		"ticket": gateTicket{TicketID: t.ID, State: model.TicketCheckedIn},
	})
}

// CheckOut records a holder leaving the venue, re-arming the ticket
// for re-entry. Only tickets currently inside can check out.
func (h *ValidationHandler) CheckOut(c echo.Context) error {
	var req credentialReq
	if err := c.Bind(&req); err != nil || !req.validate() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credential required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tx, err := h.Tickets.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-out failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := h.Tickets.GetByCredentialTx(ctx, tx, req.Credential)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			monitoring.TrackGateScan("check_out", "not_found")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-out failed"})
	}
	order, err := h.Orders.GetForUpdateTx(ctx, tx, t.OrderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-out failed"})
	}
	if !h.requireGateAccess(c, order.EventID) {
		return nil
	}
	if !model.CanCheckOut(t.State) {
		monitoring.TrackGateScan("check_out", "rejected")
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "ticket is not checked in",
			"state": t.State,
		})
	}
	if err := h.Tickets.CheckOutTx(ctx, tx, t.ID); err != nil {
		if err == repository.ErrConflict {
			monitoring.TrackGateScan("check_out", "rejected")
			return c.JSON(http.StatusConflict, echo.Map{"error": "ticket is not checked in"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-out failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-out failed"})
	}
	committed = true
	monitoring.TrackGateScan("check_out", "recorded")

	return c.JSON(http.StatusOK, echo.Map{
		"ticket": gateTicket{TicketID: t.ID, State: model.TicketCheckedOut},
	})
}
