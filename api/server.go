/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     zap request logging (request_id, status, latency)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request count and duration per route
  6. CORS:       Cross-origin requests for the front-end

ROUTE GROUPS:
  /health            Liveness
  /metrics           Prometheus scrape endpoint
  /api/auth/login    Public
  /api/*             Bearer token required

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth, logging and metrics middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/shop-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/auth/me", h.Me)

			// Product routes
			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/available", h.AvailableProducts)
				r.Get("/{id}", h.GetProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
				r.Post("/{id}/stock", h.AdjustStock)
			})

			// Sale routes
			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.ListSales)
				r.Post("/", h.CommitSale)
				r.Post("/reverse", h.ReverseSales)
				r.Get("/{id}", h.GetSale)
				r.Post("/{id}/reverse", h.ReverseSale)
			})

			// User routes
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Post("/", h.RegisterUser)
				r.Put("/{id}", h.UpdateUser)
				r.Post("/{id}/activate", h.ActivateUser)
				r.Post("/{id}/deactivate", h.DeactivateUser)
				r.Delete("/{id}", h.DeleteUser)
			})

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/summary", h.SummaryReport)
				r.Get("/sales", h.SalesReport)
				r.Get("/inventory", h.InventoryReport)
				r.Get("/monthly", h.MonthlyReport)
			})
		})
	})

	return r
}
