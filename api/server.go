/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/habits/*    Habit CRUD, choices, effectiveness, history
  /api/history/*   Direct execution edits
  /api/admin/*     Backfill

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Habit routes
		r.Route("/habits", func(r chi.Router) {
			r.Get("/", h.ListHabits)
			r.Post("/", h.CreateHabit)
			r.Get("/{id}", h.GetHabit)
			r.Put("/{id}", h.UpdateHabit)
			r.Delete("/{id}", h.DeleteHabit)
			r.Post("/{id}/choice", h.RecordChoice)
			r.Get("/{id}/effectiveness", h.GetEffectiveness)
			r.Get("/{id}/history", h.GetHistory)
			r.Post("/{id}/equalize", h.EqualizeCounters)
		})

		// History routes (execution-id addressed)
		r.Route("/history", func(r chi.Router) {
			r.Put("/{id}", h.EditHistoryEntry)
			r.Delete("/{id}", h.DeleteHistoryEntry)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/backfill", h.Backfill)
		})
	})

	return r
}
