package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pitchpoint/pitchpoint-backend/api/routes"
	"github.com/pitchpoint/pitchpoint-backend/internal/availability"
	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/internal/payments"
	"github.com/pitchpoint/pitchpoint-backend/internal/reservations"
	squarewebhook "github.com/pitchpoint/pitchpoint-backend/internal/webhooks/square"
	"github.com/pitchpoint/pitchpoint-backend/pkg/config"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
	"github.com/pitchpoint/pitchpoint-backend/pkg/migrate"
	"github.com/pitchpoint/pitchpoint-backend/pkg/outbox"
	"github.com/pitchpoint/pitchpoint-backend/pkg/redis"
	"github.com/pitchpoint/pitchpoint-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square", err)
		os.Exit(1)
	}

	checkoutGateway, err := payments.NewSquareGateway(squareClient, cfg.Square.RedirectURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout gateway", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	holdRepo := reservations.NewHoldRepository(dbClient.DB())
	intentRepo := payments.NewIntentRepository(dbClient.DB())
	bookingRepo := fulfillment.NewBookingRepository(dbClient.DB())
	orderRepo := fulfillment.NewOrderRepository(dbClient.DB())

	paymentService, err := payments.NewService(payments.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Holds:    holdRepo,
		Intents:  intentRepo,
		Bookings: bookingRepo,
		Orders:   orderRepo,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Logger:   logg,
		Config:   cfg.Reservations,
		DB:       dbClient,
		Holds:    holdRepo,
		Intents:  intentRepo,
		Bookings: bookingRepo,
		Orders:   orderRepo,
		Outbox:   outboxService,
		Checkout: checkoutGateway,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Logger:     logg,
		Reconciler: paymentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, cfg.Reservations.WebhookGuardTTL, "square-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			availability.NewIndex(dbClient.DB()),
			fulfillmentService,
			paymentService,
			squareClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
