/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request logging, request-scoped logger in context
  3. Recovery:   Panic recovery (500 instead of crash)
  4. Timeout:    Per-request deadline
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/health           Liveness
  /api/contracts/*      Contracts, pipeline, schedule, ledger views
  /api/entries/*        Recognize / adjust / reverse
  /api/obligations/*    Remaining revenue
  /api/admin/*          Bulk processing and recognition

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/warp/revenue-engine/api/middleware"
)

// RouterOptions configures NewRouter. Zero values are usable.
type RouterOptions struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	Timeout        time.Duration
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recovery(opts.Logger))
	if opts.Timeout > 0 {
		r.Use(chimw.Timeout(opts.Timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Put("/{id}/obligations", h.ReplaceObligations)
			r.Get("/{id}/obligations", h.GetObligations)
			r.Post("/{id}/considerations", h.AddConsideration)
			r.Post("/{id}/process", h.ProcessContract)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/summary", h.GetSummary)
			r.Post("/{id}/recognize-due", h.RecognizeDue)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Post("/{id}/recognize", h.RecognizeEntry)
			r.Post("/{id}/adjust", h.AdjustEntry)
			r.Post("/{id}/reverse", h.ReverseEntry)
		})

		r.Get("/obligations/{id}/remaining", h.GetRemaining)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/process", h.ProcessAll)
			r.Post("/recognize-due", h.RecognizeAllDue)
		})
	})

	return r
}
