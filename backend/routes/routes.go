package routes

import (
	"net/http"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/app"
	"github.com/MoAftaab/crm-xeno/backend/internal/observability"
	"github.com/MoAftaab/crm-xeno/backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for the browser frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.Health.HandleHealth)
	r.Get("/readyz", deps.Health.HandleReadiness)

	r.Get("/api-docs/openapi.json", deps.Docs.HandleOpenAPI)

	authHandler := deps.AuthHandler()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/google", authHandler.HandleGoogleLogin)

		// Session endpoints
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/logout", authHandler.HandleLogout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
