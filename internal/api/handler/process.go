package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/d9705996/licenca/internal/api/jsonapi"
	"github.com/d9705996/licenca/internal/api/middleware"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/status"
	"github.com/d9705996/licenca/internal/store"
)

// ProcessHandler handles the organization-scoped process and process-type
// routes. Every query is filtered by the active organization.
type ProcessHandler struct {
	client store.Client
	clock  status.Clock
	loc    *time.Location
	log    *slog.Logger
}

// NewProcessHandler creates a ProcessHandler. Calendar days for derived
// statuses start at midnight in loc.
func NewProcessHandler(client store.Client, clock status.Clock, loc *time.Location, log *slog.Logger) *ProcessHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ProcessHandler{client: client, clock: clock, loc: loc, log: log}
}

func (h *ProcessHandler) now() time.Time { return h.clock.Now().In(h.loc) }

type processAttrs struct {
	OrganizationID string  `json:"organization_id"`
	ProcessTypeID  *string `json:"process_type_id"`
	Title          string  `json:"title"`
	Agency         string  `json:"agency"`
	ProtocolNumber string  `json:"protocol_number"`
	Status         string  `json:"status"`
	DueDate        *string `json:"due_date"`
	status.Result
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func processResource(p model.Process, derived status.Result) jsonapi.ResourceObject {
	attrs := processAttrs{
		OrganizationID: p.OrganizationID,
		ProcessTypeID:  p.ProcessTypeID,
		Title:          p.Title,
		Agency:         p.Agency,
		ProtocolNumber: p.ProtocolNumber,
		Status:         p.Status,
		Result:         derived,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.DueDate != nil {
		d := p.DueDate.UTC().Format(time.DateOnly)
		attrs.DueDate = &d
	}
	return jsonapi.ResourceObject{Type: "process", ID: p.ID, Attributes: attrs}
}

func renderStoreError(w http.ResponseWriter) {
	jsonapi.RenderError(w, http.StatusInternalServerError, "store_error", "Internal Server Error", "the data store request failed")
}

// ListProcessTypes handles GET /api/v1/process-types.
func (h *ProcessHandler) ListProcessTypes(w http.ResponseWriter, r *http.Request) {
	org, _ := middleware.ActiveOrgFromContext(r.Context())
	var types []model.ProcessType
	if err := h.client.Select(r.Context(), model.TableProcessTypes, &types, store.Query{
		Filters: []store.Filter{store.Eq("organization_id", org.ID)},
		Order:   []store.Order{{Column: "category"}, {Column: "name"}},
	}); err != nil {
		h.log.ErrorContext(r.Context(), "list process types", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	data := make([]any, 0, len(types))
	for _, pt := range types {
		data = append(data, jsonapi.ResourceObject{Type: "process_type", ID: pt.ID, Attributes: pt})
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// List handles GET /api/v1/processes. ?visual_status= keeps only processes
// whose derived status matches.
func (h *ProcessHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, _ := middleware.ActiveOrgFromContext(ctx)
	want := status.Visual(r.URL.Query().Get("visual_status"))
	switch want {
	case "", status.InProgress, status.Done, status.Overdue, status.DueSoon:
	default:
		jsonapi.RenderErrors(w, http.StatusBadRequest, []jsonapi.ErrorObject{{
			Status: http.StatusText(http.StatusBadRequest),
			Code:   "invalid_filter",
			Title:  "Bad Request",
			Detail: "visual_status must be one of em_andamento, concluido, atrasado, vence_em_breve",
			Source: &jsonapi.ErrorSource{Parameter: "visual_status"},
		}})
		return
	}

	var procs []model.Process
	if err := h.client.Select(ctx, model.TableProcesses, &procs, store.Query{
		Filters: []store.Filter{store.Eq("organization_id", org.ID)},
		Order:   []store.Order{{Column: "created_at", Desc: true}},
	}); err != nil {
		h.log.ErrorContext(ctx, "list processes", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}

	now := h.now()
	data := make([]any, 0, len(procs))
	for _, p := range procs {
		derived := status.Derive(p.Status, p.DueDate, now)
		if want != "" && derived.Visual != want {
			continue
		}
		data = append(data, processResource(p, derived))
	}
	jsonapi.RenderListMeta(w, http.StatusOK, data, nil, jsonapi.Meta{"total": len(data)})
}

type createProcessAttrs struct {
	Title          string  `json:"title"`
	ProcessTypeID  *string `json:"process_type_id"`
	Agency         string  `json:"agency"`
	ProtocolNumber string  `json:"protocol_number"`
	Status         string  `json:"status"`
	DueDate        string  `json:"due_date"`
}

// Create handles POST /api/v1/processes.
func (h *ProcessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProcessAttrs
	if err := jsonapi.DecodeAttributes(r, &req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity, "missing_field", "Unprocessable Entity", "title is required")
		return
	}
	due, ok := parseDue(req.DueDate)
	if !ok {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity, "invalid_due_date", "Unprocessable Entity", "due_date must be YYYY-MM-DD")
		return
	}
	if req.Status = strings.TrimSpace(req.Status); req.Status == "" {
		req.Status = string(status.InProgress)
	}

	ctx := r.Context()
	org, _ := middleware.ActiveOrgFromContext(ctx)
	claims := middleware.ClaimsFromContext(ctx)

	if req.ProcessTypeID != nil && *req.ProcessTypeID != "" {
		n, err := h.client.Count(ctx, model.TableProcessTypes,
			store.Eq("id", *req.ProcessTypeID), store.Eq("organization_id", org.ID))
		if err != nil {
			h.log.ErrorContext(ctx, "check process type", "organization_id", org.ID, "err", err)
			renderStoreError(w)
			return
		}
		if n == 0 {
			jsonapi.RenderError(w, http.StatusUnprocessableEntity, "unknown_process_type", "Unprocessable Entity",
				"process_type_id does not name a process type of the active organization")
			return
		}
	} else {
		req.ProcessTypeID = nil
	}

	rows := []model.Process{{
		OrganizationID: org.ID,
		ProcessTypeID:  req.ProcessTypeID,
		Title:          req.Title,
		Agency:         strings.TrimSpace(req.Agency),
		ProtocolNumber: strings.TrimSpace(req.ProtocolNumber),
		Status:         req.Status,
		DueDate:        due,
	}}
	if claims != nil {
		rows[0].CreatedBy = &claims.UserID
	}
	if err := h.client.Insert(ctx, model.TableProcesses, &rows); err != nil {
		h.log.ErrorContext(ctx, "create process", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	p := rows[0]
	jsonapi.RenderOne(w, http.StatusCreated, processResource(p, status.Derive(p.Status, p.DueDate, h.now())))
}

type updateProcessAttrs struct {
	Title          *string `json:"title"`
	Agency         *string `json:"agency"`
	ProtocolNumber *string `json:"protocol_number"`
	Status         *string `json:"status"`
	// An empty string clears the due date.
	DueDate *string `json:"due_date"`
}

// Update handles PATCH /api/v1/processes/{id}.
func (h *ProcessHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProcessAttrs
	if err := jsonapi.DecodeAttributes(r, &req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", err.Error())
		return
	}

	patch := map[string]any{}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			jsonapi.RenderError(w, http.StatusUnprocessableEntity, "missing_field", "Unprocessable Entity", "title cannot be empty")
			return
		}
		patch["title"] = t
	}
	if req.Agency != nil {
		patch["agency"] = strings.TrimSpace(*req.Agency)
	}
	if req.ProtocolNumber != nil {
		patch["protocol_number"] = strings.TrimSpace(*req.ProtocolNumber)
	}
	if req.Status != nil {
		s := strings.TrimSpace(*req.Status)
		if s == "" {
			jsonapi.RenderError(w, http.StatusUnprocessableEntity, "missing_field", "Unprocessable Entity", "status cannot be empty")
			return
		}
		patch["status"] = s
	}
	if req.DueDate != nil {
		due, ok := parseDue(*req.DueDate)
		if !ok {
			jsonapi.RenderError(w, http.StatusUnprocessableEntity, "invalid_due_date", "Unprocessable Entity", "due_date must be YYYY-MM-DD")
			return
		}
		if due == nil {
			patch["due_date"] = nil
		} else {
			patch["due_date"] = *due
		}
	}
	if len(patch) == 0 {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity, "empty_patch", "Unprocessable Entity", "no updatable attribute was given")
		return
	}
	patch["updated_at"] = time.Now().UTC()

	ctx := r.Context()
	org, _ := middleware.ActiveOrgFromContext(ctx)
	scope := []store.Filter{store.Eq("id", r.PathValue("id")), store.Eq("organization_id", org.ID)}

	n, err := h.client.Update(ctx, model.TableProcesses, patch, scope...)
	if err != nil {
		h.log.ErrorContext(ctx, "update process", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	if n == 0 {
		renderProcessNotFound(w)
		return
	}

	var procs []model.Process
	if err := h.client.Select(ctx, model.TableProcesses, &procs, store.Query{Filters: scope, Limit: 1}); err != nil || len(procs) == 0 {
		h.log.ErrorContext(ctx, "reload process", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	p := procs[0]
	jsonapi.RenderOne(w, http.StatusOK, processResource(p, status.Derive(p.Status, p.DueDate, h.now())))
}

// Delete handles DELETE /api/v1/processes/{id}.
func (h *ProcessHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, _ := middleware.ActiveOrgFromContext(ctx)
	scope := []store.Filter{store.Eq("id", r.PathValue("id")), store.Eq("organization_id", org.ID)}

	n, err := h.client.Count(ctx, model.TableProcesses, scope...)
	if err != nil {
		h.log.ErrorContext(ctx, "find process", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	if n == 0 {
		renderProcessNotFound(w)
		return
	}
	if err := h.client.Delete(ctx, model.TableProcesses, scope...); err != nil {
		h.log.ErrorContext(ctx, "delete process", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard handles GET /api/v1/dashboard.
func (h *ProcessHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, _ := middleware.ActiveOrgFromContext(ctx)
	var procs []model.Process
	if err := h.client.Select(ctx, model.TableProcesses, &procs, store.Query{
		Filters: []store.Filter{store.Eq("organization_id", org.ID)},
	}); err != nil {
		h.log.ErrorContext(ctx, "load dashboard", "organization_id", org.ID, "err", err)
		renderStoreError(w)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "dashboard",
		ID:         org.ID,
		Attributes: status.Summarize(procs, h.now()),
	})
}

func renderProcessNotFound(w http.ResponseWriter) {
	jsonapi.RenderError(w, http.StatusNotFound, "not_found", "Not Found", "process not found in the active organization")
}

// parseDue reads a due date as a calendar date stored at UTC midnight. An
// empty string is no due date.
func parseDue(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	due := status.ParseDueDate(s)
	if due == nil {
		return nil, false
	}
	return due, true
}
