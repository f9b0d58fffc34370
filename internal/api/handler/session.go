package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/d9705996/licenca/internal/api/jsonapi"
	"github.com/d9705996/licenca/internal/api/middleware"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/orgctx"
)

// SessionHandler handles /api/v1/session routes.
type SessionHandler struct {
	sessions *middleware.Sessions
	log      *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *middleware.Sessions, log *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

type sessionAttrs struct {
	ActiveOrganizationID *string              `json:"active_organization_id"`
	NeedsOnboarding      bool                 `json:"needs_onboarding"`
	Organizations        []model.Organization `json:"organizations"`
}

func renderSession(w http.ResponseWriter, status int, sess *orgctx.Session) {
	attrs := sessionAttrs{
		NeedsOnboarding: sess.NeedsOnboarding(),
		Organizations:   sess.Organizations(),
	}
	if id := sess.ActiveID(); id != "" {
		attrs.ActiveOrganizationID = &id
	}
	jsonapi.RenderOne(w, status, jsonapi.ResourceObject{
		Type:       "session",
		ID:         sess.UserID(),
		Attributes: attrs,
	})
}

func renderSeedFailed(w http.ResponseWriter) {
	jsonapi.RenderError(w, http.StatusInternalServerError,
		"seed_failed", "Internal Server Error",
		"the organization's default process types could not be created")
}

// Get handles GET /api/v1/session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.For(w, r)
	if err := sess.Resolve(r.Context()); err != nil {
		h.log.ErrorContext(r.Context(), "resolve session", "user_id", sess.UserID(), "err", err)
		renderSeedFailed(w)
		return
	}
	renderSession(w, http.StatusOK, sess)
}

type switchAttrs struct {
	OrganizationID string `json:"organization_id"`
}

// SetActiveOrganization handles PUT /api/v1/session/active-organization.
func (h *SessionHandler) SetActiveOrganization(w http.ResponseWriter, r *http.Request) {
	var req switchAttrs
	if err := jsonapi.DecodeAttributes(r, &req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
		return
	}
	if req.OrganizationID == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity, "missing_field", "Unprocessable Entity", "organization_id is required")
		return
	}

	ctx := r.Context()
	sess := h.sessions.For(w, r)
	if err := sess.Switch(ctx, req.OrganizationID); err != nil {
		if errors.Is(err, orgctx.ErrNotOwner) {
			jsonapi.RenderError(w, http.StatusForbidden, "not_owner", "Forbidden", "organization is not owned by the current user")
			return
		}
		h.log.ErrorContext(ctx, "switch organization", "user_id", sess.UserID(),
			"organization_id", req.OrganizationID, "err", err)
		renderSeedFailed(w)
		return
	}
	renderSession(w, http.StatusOK, sess)
}
