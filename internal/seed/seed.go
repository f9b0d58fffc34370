// Package seed creates the data a fresh installation and a fresh
// organization start with: the first admin user and the default
// process-type catalog. Every function is idempotent.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/d9705996/licenca/internal/metrics"
	"github.com/d9705996/licenca/internal/model"
	"github.com/d9705996/licenca/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("licenca/seed")

// Seeder fills an organization's empty process-type catalog.
type Seeder struct {
	client  store.Client
	catalog []ProcessTypeSeed
	log     *slog.Logger
}

// NewSeeder returns a Seeder writing the default Catalog through client.
func NewSeeder(client store.Client, log *slog.Logger) *Seeder {
	return &Seeder{client: client, catalog: Catalog(), log: log}
}

// EnsureDefaults inserts the default catalog for orgID when the organization
// has no process types at all. An organization with any process type, seeded
// or hand-made, is left untouched. userID stamps the rows and may be empty.
// Count and insert failures are returned; nothing is inserted on failure.
func (s *Seeder) EnsureDefaults(ctx context.Context, orgID, userID string) error {
	if orgID == "" {
		return nil
	}
	ctx, span := tracer.Start(ctx, "seed.EnsureDefaults")
	defer span.End()
	span.SetAttributes(attribute.String("organization_id", orgID))

	n, err := s.client.Count(ctx, model.TableProcessTypes, store.Eq("organization_id", orgID))
	if err != nil {
		return s.fail(ctx, span, orgID, fmt.Errorf("count process types: %w", err))
	}
	if n > 0 {
		metrics.ObserveSeed("skipped")
		s.log.DebugContext(ctx, "process types already present", "organization_id", orgID, "count", n)
		return nil
	}

	var owner *string
	if userID != "" {
		owner = &userID
	}
	rows := make([]model.ProcessType, 0, len(s.catalog))
	for _, e := range s.catalog {
		rows = append(rows, model.ProcessType{
			OrganizationID:         orgID,
			UserID:                 owner,
			CreatedBy:              owner,
			Name:                   e.Name,
			Category:               e.Category,
			Code:                   e.Code,
			IsLicensing:            e.IsLicensing,
			IsDefault:              true,
			RequiresAgency:         e.RequiresAgency,
			RequiresProtocolNumber: e.RequiresProtocolNumber,
			Active:                 true,
		})
	}
	if err := s.client.Insert(ctx, model.TableProcessTypes, &rows); err != nil {
		return s.fail(ctx, span, orgID, fmt.Errorf("insert default process types: %w", err))
	}

	metrics.ObserveSeed("seeded")
	s.log.InfoContext(ctx, "default process types created", "organization_id", orgID, "count", len(rows))
	return nil
}

func (s *Seeder) fail(ctx context.Context, span trace.Span, orgID string, err error) error {
	metrics.ObserveSeed("error")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.ErrorContext(ctx, "seed process types failed", "organization_id", orgID, "err", err)
	return err
}

// AdminOptions configures the seed admin user.
type AdminOptions struct {
	Email    string
	Password string // if empty, a random password is generated
}

// EnsureAdmin creates a seed admin user if no users exist.
// A generated password is printed to stdout exactly once.
func EnsureAdmin(ctx context.Context, client store.Client, opts AdminOptions, log *slog.Logger) error {
	count, err := client.Count(ctx, model.TableUsers)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Info("seed admin already exists")
		return nil
	}

	password := opts.Password
	if password == "" {
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		fmt.Printf("[licenca] seed admin password: %s\n", password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	users := []model.User{{
		Email:        opts.Email,
		Name:         "Seed Admin",
		PasswordHash: string(hash),
		Roles:        model.StringSlice{"Admin"},
	}}
	if err := client.Insert(ctx, model.TableUsers, &users); err != nil {
		return fmt.Errorf("insert seed admin: %w", err)
	}

	log.Info("seed admin created", "email", opts.Email)
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
