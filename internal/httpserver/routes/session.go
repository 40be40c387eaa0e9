package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	limited := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger), mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.SignInBurst,
		RefillPerIPPerMin: d.SignInPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	}))
	limited.Post("/api/users", handlers.CreateUser(d))
	limited.Post("/api/session", handlers.SignIn(d))

	r.With(mw.RequireSession(d.Auth, d.CookieName, d.Logger)).Get("/api/session", handlers.CurrentSession(d))
	r.Delete("/api/session", handlers.SignOut(d))
}
