package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamboard/engine/internal/api/handlers"
	mw "github.com/teamboard/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret      []byte
	AuthHandler     *handlers.AuthHandler
	ProjectsHandler *handlers.ProjectsHandler
	BackupsHandler  *handlers.BackupsHandler
	HealthHandler   *handlers.HealthHandler
	RateLimiter     *mw.RateLimiter
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	limiter := dep.RateLimiter
	if limiter == nil {
		limiter = mw.NewRateLimiter(10, 20)
	}
	health := dep.HealthHandler
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(limiter.Handler)

	// Health and metrics
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// Auth routes (public)
		api.Route("/auth", func(ar chi.Router) {
			ar.Use(chimid.Compress(5))
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
			ar.Post("/logout", dep.AuthHandler.Logout)
		})

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			// Projects
			protected.Route("/projects", func(pr chi.Router) {
				pr.With(chimid.Compress(5)).Get("/", dep.ProjectsHandler.List)
				pr.Post("/", dep.ProjectsHandler.Create)
				pr.Post("/import", dep.BackupsHandler.Import)

				pr.Route("/{id}", func(one chi.Router) {
					one.Get("/", dep.ProjectsHandler.Get)
					one.Put("/", dep.ProjectsHandler.Update)
					one.Delete("/", dep.ProjectsHandler.Archive)

					// Archives are already deflated, so export skips Compress.
					one.Post("/export", dep.BackupsHandler.Export)
					one.Post("/backups", dep.BackupsHandler.Schedule)
					one.Get("/backups", dep.BackupsHandler.List)
				})
			})

			// Stored backups
			protected.Route("/backups/{id}", func(br chi.Router) {
				br.Get("/", dep.BackupsHandler.Get)
				br.Post("/restore", dep.BackupsHandler.Restore)
			})
		})
	})

	return r
}
