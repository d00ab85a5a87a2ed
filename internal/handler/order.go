package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/config"
	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/monitoring"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
)

// maxUnitsPerOrder caps how many tickets one checkout may reserve.
const maxUnitsPerOrder = 10

// OrderHandler owns checkout and the order read endpoints. Checkout
// is the only place inventory is reserved; release happens in the
// reconciler or on explicit cancel.
type OrderHandler struct {
	Cfg         config.Config
	Orders      *repository.OrderRepo
	Payments    *repository.PaymentRepo
	Events      *repository.EventRepo
	TicketTypes *repository.TicketTypeRepo
}

func NewOrderHandler(cfg config.Config, o *repository.OrderRepo, p *repository.PaymentRepo,
	e *repository.EventRepo, tt *repository.TicketTypeRepo) *OrderHandler {
	return &OrderHandler{Cfg: cfg, Orders: o, Payments: p, Events: e, TicketTypes: tt}
}

type checkoutItem struct {
	TicketTypeID uint64 `json:"ticket_type_id"`
	Quantity     int64  `json:"quantity"`
}

type checkoutReq struct {
	EventID uint64         `json:"event_id"`
	Items   []checkoutItem `json:"items"`
}

// Checkout creates a pending order, its payment transaction and the
// inventory reservation in one database transaction. Either all of it
// commits or the customer sees an error and nothing is held.
func (h *OrderHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventID == 0 || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and items required"})
	}
	var totalUnits int64
	seen := map[uint64]bool{}
	for _, it := range req.Items {
		if it.TicketTypeID == 0 || it.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each item needs ticket_type_id and positive quantity"})
		}
		if seen[it.TicketTypeID] {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duplicate ticket_type_id in items"})
		}
		seen[it.TicketTypeID] = true
		totalUnits += it.Quantity
	}
	if totalUnits > maxUnitsPerOrder {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many tickets in one order"})
	}

	userID := getUserID(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	event, err := h.Events.GetByID(ctx, req.EventID)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load event failed"})
	}
	if !event.StartsAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "event already started"})
	}

	open, err := h.Orders.HasOpenOrder(ctx, userID, req.EventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check open orders failed"})
	}
	if open {
		return c.JSON(http.StatusConflict, echo.Map{"error": "an order for this event is already in progress"})
	}

	// Price from the ledger, never from the client.
	items := make([]model.OrderItem, 0, len(req.Items))
	var total int64
	for _, it := range req.Items {
		tt, err := h.TicketTypes.GetByID(ctx, it.TicketTypeID)
		if err != nil {
			if err == repository.ErrTicketTypeNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load ticket type failed"})
		}
		if tt.EventID != req.EventID {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket type does not belong to event"})
		}
		items = append(items, model.OrderItem{
			TicketTypeID:   it.TicketTypeID,
			Quantity:       it.Quantity,
			UnitPriceCents: tt.PriceCents,
		})
		total += tt.PriceCents * it.Quantity
	}
	// Reservation locks rows in ascending type ID order on every code
	// path, which rules out lock-ordering deadlocks between checkouts.
	sort.Slice(items, func(i, j int) bool { return items[i].TicketTypeID < items[j].TicketTypeID })

	newRef, err := nanoid.Standard(15)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order := &model.Order{
		Reference:  newRef(),
		UserID:     userID,
		EventID:    req.EventID,
		Status:     model.OrderPending,
		TotalCents: total,
		Currency:   h.Cfg.Currency,
	}
	if err := h.Orders.CreateTx(ctx, tx, order, items); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create order failed"})
	}

	payment := &model.PaymentTransaction{
		OrderID:     order.ID,
		AmountCents: total,
		Currency:    h.Cfg.Currency,
		Status:      model.PaymentRequiresPayment,
	}
	if err := h.Payments.CreateTx(ctx, tx, payment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment failed"})
	}

	lines := make([]repository.ReservationLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, repository.ReservationLine{TicketTypeID: it.TicketTypeID, Quantity: it.Quantity})
	}
	if err := h.TicketTypes.ReserveTx(ctx, tx, lines); err != nil {
		var insufficient *repository.InsufficientInventoryError
		if errors.As(err, &insufficient) {
			monitoring.TrackInsufficientInventory()
			return c.JSON(http.StatusConflict, echo.Map{
				"error":          "insufficient inventory",
				"ticket_type_id": insufficient.TicketTypeID,
				"requested":      insufficient.Requested,
				"available":      insufficient.Available,
			})
		}
		if err == repository.ErrTicketTypeNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket type not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reserve inventory failed"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}
	committed = true
	monitoring.TrackOrderCreated()

	return c.JSON(http.StatusCreated, echo.Map{
		"order": order,
		"items": items,
	})
}

// List returns the caller's orders; admins may list anyone's by
// passing user_id=0 semantics through their role.
func (h *OrderHandler) List(c echo.Context) error {
	skip, limit := parsePagination(c)
	f := repository.OrderFilter{
		UserID: getUserID(c),
		Status: c.QueryParam("status"),
		From:   parseTimeParam(c, "from"),
		To:     parseTimeParam(c, "to"),
	}
	if isAdmin(c) {
		f.UserID = 0
	}
	if v := c.QueryParam("event_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.EventID = id
		}
	}
	if f.Status != "" && !model.ValidOrderStatus(f.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	orders, total, err := h.Orders.List(ctx, f, skip, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list orders failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"orders": orders,
		"total":  total,
		"skip":   skip,
		"limit":  limit,
	})
}

// Get returns one order with its items and payment state. Customers
// only see their own.
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load order failed"})
	}
	if order.UserID != getUserID(c) && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	items, err := h.Orders.Items(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load items failed"})
	}
	payment, err := h.Payments.GetByOrderID(ctx, id)
	if err != nil && err != repository.ErrPaymentNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load payment failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order":   order,
		"items":   items,
		"payment": payment,
	})
}

// Cancel aborts a pending or processing order, releasing its
// reservation. Completed orders go through refunds instead.
func (h *OrderHandler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load order failed"})
	}
	if order.UserID != getUserID(c) && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-read under lock; a webhook may have finished the order since.
	order, err = h.Orders.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if !model.CanTransition(order.Status, model.OrderCancelled) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order can no longer be cancelled"})
	}
	if err := h.Orders.UpdateStatusTx(ctx, tx, id, order.Status, model.OrderCancelled); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "order can no longer be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	items, err := h.Orders.ItemsTx(ctx, tx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	lines := make([]repository.ReservationLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, repository.ReservationLine{TicketTypeID: it.TicketTypeID, Quantity: it.Quantity})
	}
	if err := h.TicketTypes.ReleaseTx(ctx, tx, id, lines); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := h.Orders.SoftDeleteTx(ctx, tx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	committed = true
	monitoring.TrackOrderFinalized(string(model.OrderCancelled))

	return c.NoContent(http.StatusNoContent)
}
