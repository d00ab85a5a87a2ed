// Package router wires HTTP routes to handlers and applies the
// middleware each group needs.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ticketprozw/ticketpro-backend/internal/handler"
	"github.com/ticketprozw/ticketpro-backend/internal/middleware"
	"github.com/ticketprozw/ticketpro-backend/internal/model"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Events      *handler.EventHandler
	TicketTypes *handler.TicketTypeHandler
	Orders      *handler.OrderHandler
	Payments    *handler.PaymentHandler
	Tickets     *handler.TicketHandler
	Validation  *handler.ValidationHandler
	Admin       *handler.AdminHandler
}

// Register mounts all routes. cached wraps the public catalog in the
// Redis response cache; pass an identity middleware to disable it.
func Register(e *echo.Echo, h Handlers, jwtSecret string, cached echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Provider callbacks authenticate by signature, not by session.
	e.POST("/v1/webhooks/payment", h.Payments.Webhook)

	// Session management.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	auth.POST("/logout", h.Auth.Logout)

	// Public catalog, cached.
	e.GET("/v1/events", h.Events.List, cached)
	e.GET("/v1/events/:id", h.Events.Get, cached)

	// Everything below requires a session.
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleCustomer, model.RoleOrganizer, model.RoleAdmin))

	v1.GET("/me", h.Auth.Me)

	// Customer checkout and order lifecycle.
	v1.POST("/orders", h.Orders.Checkout)
	v1.GET("/orders", h.Orders.List)
	v1.GET("/orders/:id", h.Orders.Get)
	v1.DELETE("/orders/:id", h.Orders.Cancel)
	v1.POST("/orders/:id/payment-intent", h.Payments.CreateIntent)
	v1.GET("/orders/:id/payment", h.Payments.GetTransaction)
	v1.POST("/orders/:id/refund", h.Payments.Refund)

	// Ticket wallet.
	v1.GET("/tickets", h.Tickets.List)
	v1.GET("/tickets/:id", h.Tickets.Get)

	// Organizer event management.
	org := v1.Group("", middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
	org.POST("/events", h.Events.Create)
	org.PUT("/events/:id", h.Events.Update)
	org.DELETE("/events/:id", h.Events.Delete)
	org.GET("/my/events", h.Events.Mine)
	org.GET("/my/events/stats", h.Admin.EventStats)
	org.POST("/events/:id/ticket-types", h.TicketTypes.Create)
	org.PUT("/events/:id/ticket-types/:type_id", h.TicketTypes.Update)
	org.DELETE("/events/:id/ticket-types/:type_id", h.TicketTypes.Delete)

	// Venue gate. Organizers run their own doors; admins can too.
	gate := v1.Group("/gate", middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
	gate.POST("/status", h.Validation.Status)
	gate.POST("/check-in", h.Validation.CheckIn)
	gate.POST("/check-out", h.Validation.CheckOut)

	// Back office.
	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/dashboard", h.Admin.Dashboard)
	admin.GET("/sales", h.Admin.Sales)
	admin.GET("/events/stats", h.Admin.EventStats)
	admin.GET("/events/:id/stats", h.Admin.EventStatsByID)
	admin.POST("/tickets/:id/transfer", h.Admin.TransferTicket)
}
