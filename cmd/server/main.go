package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ticketprozw/ticketpro-backend/internal/config"
	"github.com/ticketprozw/ticketpro-backend/internal/database"
	"github.com/ticketprozw/ticketpro-backend/internal/handler"
	"github.com/ticketprozw/ticketpro-backend/internal/middleware"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/email"
	"github.com/ticketprozw/ticketpro-backend/internal/provider/payment"
	"github.com/ticketprozw/ticketpro-backend/internal/queue"
	"github.com/ticketprozw/ticketpro-backend/internal/repository"
	"github.com/ticketprozw/ticketpro-backend/internal/router"
	"github.com/ticketprozw/ticketpro-backend/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db, "migrations"); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; cache, rate limiting and webhook fast-path dedup disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	ticketTypes := repository.NewTicketTypeRepo(db)
	orders := repository.NewOrderRepo(db)
	payments := repository.NewPaymentRepo(db)
	tickets := repository.NewTicketRepo(db)
	analytics := repository.NewAnalyticsRepo(db)

	payClient := payment.NewClient(payment.ClientConfig{
		BaseURL:       cfg.PaymentBaseURL,
		APIKey:        cfg.PaymentAPIKey,
		SigningKey:    cfg.PaymentSigningKey,
		WebhookSecret: cfg.PaymentWebhookSecret,
	})
	mailer := email.NewClient(email.ClientConfig{
		BaseURL: cfg.EmailBaseURL,
		APIKey:  cfg.EmailAPIKey,
		From:    cfg.EmailFrom,
	})

	issuer := service.NewIssuer(orders, tickets)
	guard := service.NewIdempotencyGuard(rdb)
	reconciler := service.NewReconciler(orders, payments, ticketTypes, users, events, issuer, guard, mailer)
	repair := service.NewRepairLoop(orders, issuer)

	go repair.Run(context.Background(), cfg.RepairInterval)
	go func() {
		if err := queue.StartNotificationConsumer(mailer); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, tokens),
		Events:      handler.NewEventHandler(events, ticketTypes),
		TicketTypes: handler.NewTicketTypeHandler(events, ticketTypes),
		Orders:      handler.NewOrderHandler(cfg, orders, payments, events, ticketTypes),
		Payments:    handler.NewPaymentHandler(cfg, orders, payments, payClient, reconciler),
		Tickets:     handler.NewTicketHandler(tickets),
		Validation:  handler.NewValidationHandler(tickets, orders, events),
		Admin:       handler.NewAdminHandler(analytics, users, orders, tickets, events, mailer),
	}, cfg.JWTSecret, cached)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
