package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/d9705996/licenca/internal/metrics"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/status"
	"github.com/d9705996/licenca/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("licenca/worker")

// ScanDeadlines derives the visual status of every process relative to now
// and returns the counts per organization. Organizations with overdue or
// due-soon processes are logged. The deadline gauge is replaced with the
// open (not done) counts of this scan.
func ScanDeadlines(ctx context.Context, client store.Client, now time.Time, log *slog.Logger) (map[string]status.Summary, error) {
	ctx, span := tracer.Start(ctx, "worker.ScanDeadlines")
	defer span.End()

	var procs []model.Process
	if err := client.Select(ctx, model.TableProcesses, &procs, store.Query{
		Order: []store.Order{{Column: "organization_id"}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan deadlines: %w", err)
	}

	byOrg := map[string]status.Summary{}
	for _, p := range procs {
		s := byOrg[p.OrganizationID]
		s.Add(status.Derive(p.Status, p.DueDate, now))
		byOrg[p.OrganizationID] = s
	}

	metrics.ResetDeadlines()
	for orgID, s := range byOrg {
		metrics.SetDeadlines(orgID, string(status.Overdue), s.Overdue)
		metrics.SetDeadlines(orgID, string(status.DueSoon), s.DueSoon)
		metrics.SetDeadlines(orgID, string(status.InProgress), s.InProgress)
		if s.Overdue > 0 || s.DueSoon > 0 {
			log.InfoContext(ctx, "processes need attention",
				"organization_id", orgID, "overdue", s.Overdue, "due_soon", s.DueSoon)
		}
	}

	span.SetAttributes(
		attribute.Int("processes", len(procs)),
		attribute.Int("organizations", len(byOrg)),
	)
	log.DebugContext(ctx, "deadline scan finished", "processes", len(procs), "organizations", len(byOrg))
	return byOrg, nil
}
