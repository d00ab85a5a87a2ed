package handler

import (
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/config"
	"github.com/ticketprozw/ticketpro-backend/internal/model"
	"github.com/ticketprozw/ticketpro-backend/internal/monitoring"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/payment"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
	"github.com/ticketprozw/ticketpro-backend/internal/service"
)

// PaymentHandler drives the provider-facing half of an order's life:
// intent creation, refund requests and the webhook endpoint.
type PaymentHandler struct {
	Cfg        config.Config
	Orders     *repository.OrderRepo
	Payments   *repository.PaymentRepo
	Provider   *payment.Client
	Reconciler *service.Reconciler
}

func NewPaymentHandler(cfg config.Config, o *repository.OrderRepo, p *repository.PaymentRepo,
	client *payment.Client, rec *service.Reconciler) *PaymentHandler {
	return &PaymentHandler{Cfg: cfg, Orders: o, Payments: p, Provider: client, Reconciler: rec}
}

// CreateIntent registers the order with the payment provider and
// returns the client secret the frontend needs to collect payment.
// The order moves to processing; completion waits for the webhook.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
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
	if order.Status != model.OrderPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is not awaiting payment"})
	}
	pt, err := h.Payments.GetByOrderID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load payment failed"})
	}
	if pt.Status != model.PaymentRequiresPayment {
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment already initiated"})
	}

	intent, err := h.Provider.CreateIntent(ctx, order.Reference, pt.AmountCents, pt.Currency)
	if err != nil {
		log.Printf("payment: create intent for order %d: %v", id, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
	}

	if err := h.Payments.SetIntent(ctx, pt.ID, intent.IntentID); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment already initiated"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save intent failed"})
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save intent failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	locked, err := h.Orders.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save intent failed"})
	}
	if locked.Status == model.OrderPending {
		if err := h.Orders.UpdateStatusTx(ctx, tx, id, model.OrderPending, model.OrderProcessing); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save intent failed"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save intent failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"intent_id":     intent.IntentID,
		"client_secret": intent.ClientSecret,
	})
}

// Refund asks the provider to refund a completed order in full. The
// order flips to refunded only when the refund.succeeded webhook
// lands; this endpoint just starts the process.
func (h *PaymentHandler) Refund(c echo.Context) error {
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
	if order.Status != model.OrderCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "only completed orders can be refunded"})
	}
	pt, err := h.Payments.GetByOrderID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load payment failed"})
	}
	if pt.Status != model.PaymentSucceeded || pt.ProviderCharge == "" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment is not refundable"})
	}

	refund, err := h.Provider.CreateRefund(ctx, pt.ProviderCharge, pt.AmountCents, pt.Currency)
	if err != nil {
		log.Printf("payment: create refund for order %d: %v", id, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
	}

	return c.JSON(http.StatusAccepted, echo.Map{
		"refund_id": refund.RefundID,
		"status":    refund.Status,
	})
}

// GetTransaction returns the payment transaction for an order.
func (h *PaymentHandler) GetTransaction(c echo.Context) error {
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
	pt, err := h.Payments.GetByOrderID(ctx, id)
	if err != nil {
		if err == repository.ErrPaymentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load payment failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": pt})
}

// Webhook receives provider callbacks. Signature failures are
// rejected; everything else is acknowledged with 200 so the provider
// stops retrying, except genuine processing errors which return 500
// to request redelivery.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	ev, err := payment.ParseEvent(body, c.Request().Header.Get("X-Signature"), h.Cfg.PaymentWebhookSecret)
	if err != nil {
		monitoring.TrackWebhook("unknown", "invalid")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook"})
	}

	outcome, err := h.Reconciler.HandleEvent(c.Request().Context(), ev)
	if err != nil {
		log.Printf("payment: webhook %s (%s): %v", ev.EventID, ev.Type, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"outcome": outcome})
}
