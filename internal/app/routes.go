package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (a *Application) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	// JSON API used by the storefront.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   append([]string{a.Config.PublicOrigin}, a.Config.CORS.AllowedOrigins...),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(a.withScope)

		r.Get("/state", a.handleState)
		r.Get("/events", a.handleEvents)
		r.Post("/logout", a.handleLogout)
		r.With(a.requireAuth).Get("/me", a.handleMe)
	})

	// Pages.
	r.Group(func(r chi.Router) {
		r.Use(a.withScope)

		r.Get("/", a.handleRoot)
		r.Route("/{locale}", func(r chi.Router) {
			r.Use(a.requireLocale)
			r.Get("/", a.handleHome)
			r.Get("/auth/wallet/start", a.handleStart)
			r.Get("/auth/wallet/callback", a.handleCallback)
		})
	})

	return r
}
