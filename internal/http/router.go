package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventcheckout/internal/observability"
	"eventcheckout/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	if rl != nil {
		r.Use(RateLimitMiddleware(rl))
	}

	r.Get("/v1/events/{id}/availability", h.Availability)
	r.Get("/v1/events/{id}/registrations", h.EventRegistrations)
	r.Get("/v1/registrations/{session_id}", h.GetRegistration)
	r.Post("/v1/checkout", h.CreateCheckout)
	r.Post("/v1/checkout/voucher", h.RegisterWithVoucher)
	r.Post("/v1/vouchers", h.IssueVoucher)
	r.Get("/v1/vouchers/{code}", h.GetVoucher)
	r.Get("/v1/vouchers/{code}/validate", h.ValidateVoucher)
	r.Post("/v1/payments/webhook", h.PaymentWebhook)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
