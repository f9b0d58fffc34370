package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/d9705996/licenca/internal/api/jsonapi"
	"github.com/d9705996/licenca/internal/api/middleware"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/store"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OrganizationHandler handles /api/v1/organizations routes.
type OrganizationHandler struct {
	client   store.Client
	sessions *middleware.Sessions
	log      *slog.Logger
}

// NewOrganizationHandler creates an OrganizationHandler.
func NewOrganizationHandler(client store.Client, sessions *middleware.Sessions, log *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{client: client, sessions: sessions, log: log}
}

func orgResource(o model.Organization) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{Type: "organization", ID: o.ID, Attributes: o}
}

// List handles GET /api/v1/organizations.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	var orgs []model.Organization
	if err := h.client.Select(r.Context(), model.TableOrganizations, &orgs, store.Query{
		Filters: []store.Filter{store.Eq("owner_id", claims.UserID)},
		Order:   []store.Order{{Column: "created_at", Desc: true}},
	}); err != nil {
		h.log.ErrorContext(r.Context(), "list organizations", "err", err)
		jsonapi.RenderError(w, http.StatusInternalServerError, "store_error", "Internal Server Error", "could not list organizations")
		return
	}
	data := make([]any, 0, len(orgs))
	for _, o := range orgs {
		data = append(data, orgResource(o))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

type createOrganizationAttrs struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/organizations. The new organization is owned by
// the caller and becomes the active one.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationAttrs
	if err := jsonapi.DecodeAttributes(r, &req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity, "missing_field", "Unprocessable Entity", "name is required")
		return
	}

	ctx := r.Context()
	claims := middleware.ClaimsFromContext(ctx)

	slug := Slugify(req.Name)
	n, err := h.client.Count(ctx, model.TableOrganizations, store.Eq("slug", slug))
	if err != nil {
		h.log.ErrorContext(ctx, "check organization slug", "err", err)
		jsonapi.RenderError(w, http.StatusInternalServerError, "store_error", "Internal Server Error", "could not create organization")
		return
	}
	if n > 0 {
		slug += "-" + uuid.NewString()[:8]
	}

	rows := []model.Organization{{
		Name:      req.Name,
		Slug:      slug,
		OwnerID:   claims.UserID,
		CreatedAt: time.Now().UTC(),
	}}
	if err := h.client.Insert(ctx, model.TableOrganizations, &rows); err != nil {
		h.log.ErrorContext(ctx, "create organization", "err", err)
		jsonapi.RenderError(w, http.StatusInternalServerError, "store_error", "Internal Server Error", "could not create organization")
		return
	}
	org := rows[0]
	h.log.InfoContext(ctx, "organization created", "organization_id", org.ID, "owner_id", org.OwnerID)

	if err := h.sessions.For(w, r).SetActive(ctx, org.ID); err != nil {
		h.log.ErrorContext(ctx, "activate new organization", "organization_id", org.ID, "err", err)
		renderSeedFailed(w)
		return
	}

	jsonapi.RenderOne(w, http.StatusCreated, orgResource(org))
}

// Slugify lowercases name, strips accents and joins the remaining letter and
// digit runs with hyphens: "Licença Ambiental" becomes "licenca-ambiental".
func Slugify(name string) string {
	// Chained transformers keep state; build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}
	fields := strings.FieldsFunc(strings.ToLower(plain), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return "org"
	}
	return strings.Join(fields, "-")
}
