// Package orgctx resolves which of a user's organizations is active and keeps
// the server-side profile and the device-scoped preference cache in step.
//
// A Session is the explicit per-user state object. It is built by a Resolver
// and owned by whoever composes the request; there is no package-level state.
package orgctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/d9705996/licenca/internal/metrics"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/prefs"
	"github.com/d9705996/licenca/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("licenca/orgctx")

var (
	// ErrSeedFailed wraps a catalog seeding failure after the active
	// organization changed. The resolved state is kept.
	ErrSeedFailed = errors.New("seed default process types")
	// ErrNotOwner is returned by Switch for an organization the user does
	// not own.
	ErrNotOwner = errors.New("organization not owned by user")
)

// Seeder ensures an organization has its default catalog.
type Seeder interface {
	EnsureDefaults(ctx context.Context, orgID, userID string) error
}

// Resolver builds Sessions over a shared store client and seeder.
type Resolver struct {
	client store.Client
	seeder Seeder
	log    *slog.Logger
	now    func() time.Time
}

// NewResolver returns a Resolver.
func NewResolver(client store.Client, seeder Seeder, log *slog.Logger) *Resolver {
	return &Resolver{client: client, seeder: seeder, log: log, now: time.Now}
}

// Session returns the organization state of userID, backed by cache. An empty
// userID is the signed-out state.
func (r *Resolver) Session(userID string, cache prefs.Cache) *Session {
	return &Session{r: r, userID: userID, cache: cache}
}

// Session holds one user's organizations and active organization. Methods run
// their store calls sequentially; a Session is not safe for concurrent use.
type Session struct {
	r      *Resolver
	userID string
	cache  prefs.Cache

	resolved bool
	orgs     []model.Organization
	activeID string
	profile  *model.Profile
}

// UserID returns the session's user.
func (s *Session) UserID() string { return s.userID }

// Organizations returns the organizations owned by the user, newest first.
func (s *Session) Organizations() []model.Organization {
	out := make([]model.Organization, len(s.orgs))
	copy(out, s.orgs)
	return out
}

// ActiveID returns the active organization id, or "" when there is none.
func (s *Session) ActiveID() string { return s.activeID }

// Active returns the active organization when it is one of Organizations.
func (s *Session) Active() *model.Organization {
	for i := range s.orgs {
		if s.orgs[i].ID == s.activeID {
			org := s.orgs[i]
			return &org
		}
	}
	return nil
}

// Profile returns the last profile read from or written to the store.
func (s *Session) Profile() *model.Profile { return s.profile }

// Owns reports whether orgID is one of the user's organizations.
func (s *Session) Owns(orgID string) bool {
	for _, o := range s.orgs {
		if o.ID == orgID {
			return true
		}
	}
	return false
}

// NeedsOnboarding reports whether a signed-in user was resolved with no
// organizations and must create one.
func (s *Session) NeedsOnboarding() bool {
	return s.resolved && s.userID != "" && len(s.orgs) == 0
}

// Resolve picks the active organization. The stored profile value wins over
// the cached value; when neither names an owned organization the newest one
// is used. Listing and profile failures degrade to local state and are only
// logged. The only error returned wraps ErrSeedFailed.
func (s *Session) Resolve(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "orgctx.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", s.userID))

	s.resolved = true
	if s.userID == "" {
		s.clear()
		metrics.ObserveResolution("signed_out")
		return nil
	}

	prev := s.activeID
	s.orgs = s.listOrganizations(ctx)
	if len(s.orgs) == 0 {
		s.clear()
		metrics.ObserveResolution("none")
		return nil
	}

	s.profile = s.readProfile(ctx)
	stored := ""
	if s.profile != nil && s.profile.ActiveOrganizationID != nil {
		stored = *s.profile.ActiveOrganizationID
	}
	cached, _ := s.cache.Get(prefs.ActiveOrgKey)

	candidate, source := s.orgs[0].ID, "first"
	switch {
	case stored != "" && s.Owns(stored):
		candidate, source = stored, "profile"
	case cached != "" && s.Owns(cached):
		candidate, source = cached, "cache"
	}

	s.activeID = candidate
	s.cache.Set(prefs.ActiveOrgKey, candidate)
	if stored != candidate {
		if err := s.writeProfile(ctx, candidate); err != nil {
			s.r.log.WarnContext(ctx, "profile write-back failed; keeping local state",
				"user_id", s.userID, "organization_id", candidate, "err", err)
		}
	}

	metrics.ObserveResolution(source)
	span.SetAttributes(attribute.String("organization_id", candidate), attribute.String("source", source))

	if candidate != prev {
		return s.seed(ctx, candidate)
	}
	return nil
}

// SetActive switches to orgID. The profile write is attempted first; when it
// fails the cache and in-memory state are still updated. It does not check
// ownership. It is a no-op without a user or with an empty orgID.
func (s *Session) SetActive(ctx context.Context, orgID string) error {
	if s.userID == "" || orgID == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "orgctx.SetActive")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", s.userID), attribute.String("organization_id", orgID))

	prev := s.activeID
	persisted := true
	if err := s.writeProfile(ctx, orgID); err != nil {
		persisted = false
		s.r.log.WarnContext(ctx, "active organization not persisted; switching locally",
			"user_id", s.userID, "organization_id", orgID, "err", err)
	} else if p := s.readProfile(ctx); p != nil {
		s.profile = p
	}

	s.cache.Set(prefs.ActiveOrgKey, orgID)
	s.activeID = orgID
	metrics.ObserveSwitch(persisted)
	span.SetAttributes(attribute.Bool("persisted", persisted))

	if orgID != prev {
		return s.seed(ctx, orgID)
	}
	return nil
}

// Switch is SetActive for a user-chosen organization. An unresolved session
// is resolved first; a seeding failure of the organization being left is
// logged and does not block the switch. Organizations the user does not own
// are refused with ErrNotOwner and leave the session unchanged.
func (s *Session) Switch(ctx context.Context, orgID string) error {
	if !s.resolved {
		if err := s.Resolve(ctx); err != nil {
			s.r.log.WarnContext(ctx, "resolve before switch", "user_id", s.userID, "err", err)
		}
	}
	if !s.Owns(orgID) {
		return fmt.Errorf("switch to %q: %w", orgID, ErrNotOwner)
	}
	return s.SetActive(ctx, orgID)
}

func (s *Session) clear() {
	s.orgs = nil
	s.activeID = ""
	s.cache.Remove(prefs.ActiveOrgKey)
}

func (s *Session) listOrganizations(ctx context.Context) []model.Organization {
	var orgs []model.Organization
	err := s.r.client.Select(ctx, model.TableOrganizations, &orgs, store.Query{
		Filters: []store.Filter{store.Eq("owner_id", s.userID)},
		Order:   []store.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		s.r.log.ErrorContext(ctx, "list organizations failed", "user_id", s.userID, "err", err)
		return nil
	}
	return orgs
}

func (s *Session) readProfile(ctx context.Context) *model.Profile {
	var rows []model.Profile
	err := s.r.client.Select(ctx, model.TableProfiles, &rows, store.Query{
		Filters: []store.Filter{store.Eq("user_id", s.userID)},
		Limit:   1,
	})
	if err != nil {
		metrics.ObserveProfileSyncFailure("read")
		s.r.log.WarnContext(ctx, "read profile failed", "user_id", s.userID, "err", err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

// writeProfile upserts the user's profile row with orgID as active.
func (s *Session) writeProfile(ctx context.Context, orgID string) error {
	now := s.r.now().UTC()
	n, err := s.r.client.Update(ctx, model.TableProfiles,
		map[string]any{"active_organization_id": orgID, "updated_at": now},
		store.Eq("user_id", s.userID))
	if err == nil && n == 0 {
		rows := []model.Profile{{UserID: s.userID, ActiveOrganizationID: &orgID, UpdatedAt: now}}
		err = s.r.client.Insert(ctx, model.TableProfiles, &rows)
	}
	if err != nil {
		metrics.ObserveProfileSyncFailure("write")
		return fmt.Errorf("write profile: %w", err)
	}
	id := orgID
	s.profile = &model.Profile{UserID: s.userID, ActiveOrganizationID: &id, UpdatedAt: now}
	return nil
}

func (s *Session) seed(ctx context.Context, orgID string) error {
	if err := s.r.seeder.EnsureDefaults(ctx, orgID, s.userID); err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "seeding failed")
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}
	return nil
}
