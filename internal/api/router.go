// Package api wires the HTTP routes of the cardvault server.
package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/cardvault/internal/api/handler"
	mw "github.com/iconidentify/cardvault/internal/api/middleware"
)

// Handlers groups the route handlers.
type Handlers struct {
	Health    *handler.HealthHandler
	Ordering  *handler.OrderingHandler
	Selection *handler.SelectionHandler
	Export    *handler.ExportHandler
	Events    *handler.EventHandler
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, apiKey string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		// The event stream is long-lived and must not hit the request timeout.
		r.Get("/events/stream", h.Events.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))

			r.Get("/stats", h.Health.Stats)

			r.Get("/items", h.Ordering.Items)

			r.Get("/ordering", h.Ordering.Get)
			r.Put("/ordering", h.Ordering.Replace)
			r.Post("/ordering/move", h.Ordering.Move)
			r.Post("/ordering/sort", h.Ordering.Sort)
			r.Post("/ordering/reset", h.Ordering.Reset)

			r.Get("/selection", h.Selection.Get)
			r.Delete("/selection", h.Selection.Clear)
			r.Post("/selection/toggle", h.Selection.Toggle)
			r.Post("/selection/all", h.Selection.All)

			r.Post("/export", h.Export.Start)
			r.Get("/export/status", h.Export.Status)
			r.Get("/export/formats", h.Export.Formats)

			r.Get("/events", h.Events.List)
			r.Get("/events/recent", h.Events.Recent)
			r.Get("/events/stats", h.Events.Stats)
			r.Get("/events/categories", h.Events.Categories)
			r.Get("/events/severities", h.Events.Severities)
		})
	})

	return r
}
