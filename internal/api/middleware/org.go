package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/d9705996/licenca/internal/api/jsonapi"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/orgctx"
	"github.com/d9705996/licenca/internal/prefs"
)

const (
	sessionKey   contextKey = "org_session"
	activeOrgKey contextKey = "active_org"
)

// Sessions builds the organization session of the authenticated caller,
// backed by the signed preference cookie of the request.
type Sessions struct {
	Resolver *orgctx.Resolver
	Signer   *prefs.Signer
}

// For returns the unresolved session of the caller of r. Responses to r may
// receive a Set-Cookie header.
func (s *Sessions) For(w http.ResponseWriter, r *http.Request) *orgctx.Session {
	userID := ""
	if c := ClaimsFromContext(r.Context()); c != nil {
		userID = c.UserID
	}
	return s.Resolver.Session(userID, s.Signer.ForRequest(w, r))
}

// RequireActiveOrg resolves the caller's active organization and injects it
// and the session into the request context. Callers without organizations
// get 409 onboarding_required. Must be chained after RequireAuth.
//
// Sessions live for one request, so every resolution asks the seeder for the
// active organization. EnsureDefaults is a single COUNT once the catalog
// exists, and a seed that failed earlier is retried on the next request.
func RequireActiveOrg(sessions *Sessions, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ClaimsFromContext(r.Context()) == nil {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"missing_token", "Unauthorized", "authentication required")
				return
			}

			sess := sessions.For(w, r)
			if err := sess.Resolve(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "resolve active organization", "user_id", sess.UserID(), "err", err)
				jsonapi.RenderError(w, http.StatusInternalServerError,
					"seed_failed", "Internal Server Error",
					"the organization's default process types could not be created")
				return
			}
			org := sess.Active()
			if org == nil {
				jsonapi.RenderError(w, http.StatusConflict,
					"onboarding_required", "Conflict",
					"create an organization before using this resource")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			ctx = context.WithValue(ctx, activeOrgKey, *org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActiveOrgFromContext returns the organization injected by RequireActiveOrg.
func ActiveOrgFromContext(ctx context.Context) (model.Organization, bool) {
	org, ok := ctx.Value(activeOrgKey).(model.Organization)
	return org, ok
}

// SessionFromContext returns the session injected by RequireActiveOrg, or nil.
func SessionFromContext(ctx context.Context) *orgctx.Session {
	s, _ := ctx.Value(sessionKey).(*orgctx.Session)
	return s
}
