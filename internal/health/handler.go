// Package health exposes the /api/v1/health and /api/v1/ready HTTP handlers.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/d9705996/licenca/internal/api/jsonapi"
	"github.com/d9705996/licenca/internal/version"
)

const checkTimeout = 3 * time.Second

// Pinger is implemented by anything that can check a downstream dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check is a named readiness dependency.
type Check struct {
	Name   string
	Pinger Pinger
}

// Handler holds dependencies for the health and ready endpoints.
type Handler struct {
	checks    []Check
	startTime time.Time
}

// New creates a Handler. /ready reports 503 until every check passes; a
// check with a nil Pinger is not initialised yet and always fails.
func New(checks ...Check) *Handler {
	return &Handler{checks: checks, startTime: time.Now()}
}

type healthAttrs struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	BuildDate     string `json:"build_date"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ServeHealth handles GET /api/v1/health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type: "health",
		ID:   "1",
		Attributes: healthAttrs{
			Status:        "ok",
			Version:       version.Version,
			Commit:        version.Commit,
			BuildDate:     version.Date,
			UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		},
	})
}

type readyAttrs struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServeReady handles GET /api/v1/ready.
func (h *Handler) ServeReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var failed []string
	for _, c := range h.checks {
		switch {
		case c.Pinger == nil:
			results[c.Name] = "not initialised"
		default:
			if err := c.Pinger.Ping(ctx); err != nil {
				results[c.Name] = err.Error()
			} else {
				results[c.Name] = "ok"
				continue
			}
		}
		failed = append(failed, c.Name)
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		errs := make([]jsonapi.ErrorObject, 0, len(failed))
		for _, name := range failed {
			errs = append(errs, jsonapi.ErrorObject{
				Status: http.StatusText(http.StatusServiceUnavailable),
				Code:   "dependency_unavailable",
				Title:  "Service Unavailable",
				Detail: name + " is unavailable: " + results[name],
			})
		}
		jsonapi.RenderErrors(w, http.StatusServiceUnavailable, errs)
		return
	}

	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "ready",
		ID:         "1",
		Attributes: readyAttrs{Status: "ok", Checks: results},
	})
}
