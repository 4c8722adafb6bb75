package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitchpoint/pitchpoint-backend/api/controllers"
	webhookcontrollers "github.com/pitchpoint/pitchpoint-backend/api/controllers/webhooks"
	"github.com/pitchpoint/pitchpoint-backend/api/middleware"
	"github.com/pitchpoint/pitchpoint-backend/internal/fulfillment"
	"github.com/pitchpoint/pitchpoint-backend/internal/payments"
	squarewebhook "github.com/pitchpoint/pitchpoint-backend/internal/webhooks/square"
	"github.com/pitchpoint/pitchpoint-backend/pkg/config"
	"github.com/pitchpoint/pitchpoint-backend/pkg/db"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
	"github.com/pitchpoint/pitchpoint-backend/pkg/redis"
	"github.com/pitchpoint/pitchpoint-backend/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	availabilityIndex controllers.AvailabilityIndex,
	fulfillmentService *fulfillment.Service,
	paymentService *payments.Service,
	squareClient *square.Client,
	squareWebhookService *squarewebhook.Service,
	squareWebhookGuard *squarewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(squareWebhookService, squareClient, squareWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.CreateBooking(fulfillmentService, logg))
			r.Post("/{bookingID}/cancel", controllers.CancelBooking(paymentService, logg))
		})
		r.Post("/orders", controllers.CreateOrder(fulfillmentService, logg))
		r.Get("/sites/{siteID}/availability", controllers.SiteAvailability(availabilityIndex, logg))
	})

	return r
}
