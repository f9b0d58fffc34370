// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/licenca/internal/api/handler"
	"github.com/d9705996/licenca/internal/api/middleware"
	"github.com/d9705996/licenca/internal/health"
)

// Handlers groups the route handlers registered by RegisterRoutes.
type Handlers struct {
	Health        *health.Handler
	Auth          *handler.AuthHandler
	Session       *handler.SessionHandler
	Organizations *handler.OrganizationHandler
	Processes     *handler.ProcessHandler
	Metrics       http.Handler
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers, sessions *middleware.Sessions, jwtSecret string, log *slog.Logger) {
	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /api/v1/health", h.Health.ServeHealth)
	mux.HandleFunc("GET /api/v1/ready", h.Health.ServeReady)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)

	// Auth-required routes.
	protected := middleware.RequireAuth(jwtSecret)
	mux.Handle("POST /api/v1/auth/logout", protected(http.HandlerFunc(h.Auth.Logout)))

	// Session and onboarding: any authenticated user, with or without an
	// organization.
	perm := func(p string, fn http.HandlerFunc) http.Handler {
		return protected(middleware.RequirePermission(p)(fn))
	}
	mux.Handle("GET /api/v1/session", perm(middleware.PermOrganizationRead, h.Session.Get))
	mux.Handle("PUT /api/v1/session/active-organization", perm(middleware.PermOrganizationRead, h.Session.SetActiveOrganization))
	mux.Handle("GET /api/v1/organizations", perm(middleware.PermOrganizationRead, h.Organizations.List))
	mux.Handle("POST /api/v1/organizations", perm(middleware.PermOrganizationCreate, h.Organizations.Create))

	// Organization-scoped routes.
	scoped := func(p string, fn http.HandlerFunc) http.Handler {
		return protected(middleware.RequirePermission(p)(
			middleware.RequireActiveOrg(sessions, log)(fn)))
	}
	mux.Handle("GET /api/v1/process-types", scoped(middleware.PermProcessRead, h.Processes.ListProcessTypes))
	mux.Handle("GET /api/v1/processes", scoped(middleware.PermProcessRead, h.Processes.List))
	mux.Handle("POST /api/v1/processes", scoped(middleware.PermProcessWrite, h.Processes.Create))
	mux.Handle("PATCH /api/v1/processes/{id}", scoped(middleware.PermProcessWrite, h.Processes.Update))
	mux.Handle("DELETE /api/v1/processes/{id}", scoped(middleware.PermProcessDelete, h.Processes.Delete))
	mux.Handle("GET /api/v1/dashboard", scoped(middleware.PermDashboardRead, h.Processes.Dashboard))

	// Catch-all 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}
