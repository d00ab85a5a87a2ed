package handler

import (
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/email"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// AdminHandler serves the back-office endpoints: platform analytics
// and manual ticket transfer.
type AdminHandler struct {
	Analytics *repository.AnalyticsRepo
	Users     *repository.UserRepo
	Orders    *repository.OrderRepo
	Tickets   *repository.TicketRepo
	Events    *repository.EventRepo
	Mailer    *email.Client
}

func NewAdminHandler(a *repository.AnalyticsRepo, u *repository.UserRepo, o *repository.OrderRepo,
	t *repository.TicketRepo, e *repository.EventRepo, m *email.Client) *AdminHandler {
	return &AdminHandler{Analytics: a, Users: u, Orders: o, Tickets: t, Events: e, Mailer: m}
}

// Dashboard returns the platform-wide totals.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Analytics.Dashboard(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load dashboard failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": stats})
}

// Sales returns daily order volume over a date range, defaulting to
// the last 30 days.
func (h *AdminHandler) Sales(c echo.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if t := parseTimeParam(c, "from"); t != nil {
		from = *t
	}
	if t := parseTimeParam(c, "to"); t != nil {
		to = *t
	}
	if from.After(to) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be before to"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	days, err := h.Analytics.SalesByDay(ctx, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load sales failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":  from,
		"to":    to,
		"sales": days,
	})
}

// EventStats returns the per-event sales breakdown. Admins see all
// events; organizers calling their own variant see only theirs.
func (h *AdminHandler) EventStats(c echo.Context) error {
	var organizerID uint64
	if !isAdmin(c) {
		organizerID = getUserID(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Analytics.EventBreakdown(ctx, organizerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": stats})
}

// EventStatsByID returns the breakdown for one event.
func (h *AdminHandler) EventStatsByID(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Analytics.EventStatsByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"event": stats})
}

type transferReq struct {
	Email string `json:"email"`
}

// TransferTicket moves an issued ticket to another user. The ticket
// is re-homed onto a fresh zero-amount completed order owned by the
// recipient, so the original order's money trail stays intact.
// Tickets that have already been used cannot move.
func (h *AdminHandler) TransferTicket(c echo.Context) error {
	ticketID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var req transferReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	recipient, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "recipient not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load recipient failed"})
	}
	if !recipient.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "recipient account is inactive"})
	}

	newRef, err := nanoid.Standard(15)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t, err := h.Tickets.GetForUpdateTx(ctx, tx, ticketID)
	if err != nil {
		if err == repository.ErrTicketNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	if t.State != model.TicketIssued {
		return c.JSON(http.StatusConflict, echo.Map{"error": "used tickets cannot be transferred"})
	}

	srcOrder, err := h.Orders.GetForUpdateTx(ctx, tx, t.OrderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	if srcOrder.Status != model.OrderCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "ticket order is not completed"})
	}
	if srcOrder.UserID == recipient.ID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "recipient already owns this ticket"})
	}

	newOrderID, err := h.Orders.CreateTransferTx(ctx, tx, newRef(), recipient.ID, srcOrder.EventID, srcOrder.Currency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	if err := h.Tickets.ReassignOrderTx(ctx, tx, ticketID, newOrderID); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "used tickets cannot be transferred"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	committed = true

	// Best effort; the transfer is already committed.
	if ev, err := h.Events.GetByID(ctx, srcOrder.EventID); err == nil {
		if err := h.Mailer.Send(ctx, email.Message{
			To:       recipient.Email,
			Subject:  "A ticket was transferred to you",
			Template: email.TemplateTicketTransfer,
			Data: map[string]interface{}{
				"full_name":  recipient.FullName(),
				"event_name": ev.Name,
				"venue":      ev.Venue,
				"starts_at":  ev.StartsAt.UTC().Format(time.RFC3339),
				"credential": t.Credential,
			},
		}); err != nil {
			log.Printf("admin: transfer notification for ticket %d: %v", ticketID, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ticket_id":    ticketID,
		"new_order_id": newOrderID,
		"recipient_id": recipient.ID,
	})
}
