package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/transport/http/handler"
	appmiddleware "github.com/go-payment-notify/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// The processor posts from a handful of addresses; shoppers follow links.
	notifyRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)
	shopperRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler(deps.Health)
	notifH := handler.NewNotificationHandler(deps.Webhook)
	orderH := handler.NewOrderHandler(deps.Orders, deps.URLs.Cart)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.With(notifyRL.Limit).Post("/notifications", notifH.Receive)

		r.Group(func(r chi.Router) {
			r.Use(shopperRL.Limit)
			r.Get("/orders/{id}/cancel", orderH.Cancel)
			r.Get("/orders/{id}/payment-info", orderH.PaymentInfo)
		})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
