package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the HTTP routing table for the admin API. Everything under
// /api/v1 requires a valid bearer token; /healthz and the login endpoint do
// not.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/auth/login", s.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/status", s.handleStatus)
		r.Post("/service/start", s.handleStart)
		r.Post("/service/stop", s.handleStop)

		r.Get("/config/database", s.handleGetDatabaseConfig)
		r.Post("/config/database", s.handleSaveDatabaseConfig)
		r.Get("/config/email", s.handleGetEmailConfig)
		r.Post("/config/email", s.handleSaveEmailConfig)

		r.Post("/email/test", s.handleTestEmail)
		r.Get("/signing/info", s.handleSigningInfo)
		r.Get("/activity", s.handleActivity)
	})

	return r
}
