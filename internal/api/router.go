package api

import (
	"log/slog"
	"manifest-route-service/internal/api/handlers"
	"manifest-route-service/internal/services"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	Logger      *slog.Logger
	JWTSecret   string
	CORSOrigins []string
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// Handlers stay unaware of concrete adapters.
func NewRouter(svc *services.RouteService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(identity(opts.JWTSecret))

	h := &handlers.RouteHandler{Svc: svc}

	r.Get("/health", handlers.Health)
	r.Post("/manifests/parse", h.ParseManifest)

	r.Route("/routes", func(r chi.Router) {
		r.Post("/", h.CreateRoute)
		r.Route("/{routeID}", func(r chi.Router) {
			r.Get("/", h.GetRoute)
			r.Get("/runs", h.ListRuns)
			r.Post("/geocode", h.Geocode)
			r.Post("/optimize", h.Optimize)
		})
	})

	r.Put("/me/provider-key", h.SetProviderKey)

	return r
}
