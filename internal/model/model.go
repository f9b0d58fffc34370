// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Table names used by the data-store client. They match the GORM table names
// of the models below.
const (
	TableOrganizations = "organizations"
	TableProfiles      = "profiles"
	TableProcessTypes  = "process_types"
	TableProcesses     = "processes"
	TableUsers         = "users"
)

// Organization represents a tenant. Every organization has exactly one owner.
type Organization struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Slug      string    `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	OwnerID   string    `gorm:"type:text;not null;index" json:"owner_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate generates a UUID primary key if not set.
func (o *Organization) BeforeCreate(_ *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// Profile stores per-user preferences that must follow the user across
// devices. ActiveOrganizationID is nil until the user has picked one.
type Profile struct {
	UserID               string    `gorm:"type:text;primaryKey" json:"user_id"`
	ActiveOrganizationID *string   `gorm:"type:text" json:"active_organization_id"`
	UpdatedAt            time.Time `gorm:"not null" json:"updated_at"`
}

// StringSlice is a []string that GORM serialises as JSON for both SQLite
// and PostgreSQL (TEXT column).
type StringSlice []string

// User is the GORM model for the users table.
type User struct {
	ID            string      `gorm:"type:text;primaryKey"`
	Email         string      `gorm:"type:text;not null;uniqueIndex"`
	Name          string      `gorm:"type:text;not null;default:''"`
	PasswordHash  string      `gorm:"type:text;not null;default:''"`
	Roles         StringSlice `gorm:"type:text;not null;default:'[]';serializer:json"`
	DeactivatedAt *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}

// ProcessType is one entry of an organization's process-type catalog.
type ProcessType struct {
	ID                     string    `gorm:"type:text;primaryKey" json:"id"`
	OrganizationID         string    `gorm:"type:text;not null;index" json:"organization_id"`
	UserID                 *string   `gorm:"type:text" json:"user_id"`
	CreatedBy              *string   `gorm:"type:text" json:"created_by"`
	Name                   string    `gorm:"type:text;not null" json:"name"`
	Category               string    `gorm:"type:text;not null;default:''" json:"category"`
	Code                   string    `gorm:"type:text;not null;default:''" json:"code"`
	IsLicensing            bool      `gorm:"not null;default:false" json:"is_licensing"`
	IsDefault              bool      `gorm:"not null;default:false" json:"is_default"`
	RequiresAgency         bool      `gorm:"not null;default:false" json:"requires_agency"`
	RequiresProtocolNumber bool      `gorm:"not null;default:false" json:"requires_protocol_number"`
	Active                 bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt              time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate generates a UUID primary key if not set.
func (pt *ProcessType) BeforeCreate(_ *gorm.DB) error {
	if pt.ID == "" {
		pt.ID = uuid.New().String()
	}
	return nil
}

// Process is an environmental licensing or regulatory case. Status is free
// form; the user-facing risk label is derived from it by package status.
type Process struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	OrganizationID string     `gorm:"type:text;not null;index" json:"organization_id"`
	ProcessTypeID  *string    `gorm:"type:text" json:"process_type_id"`
	Title          string     `gorm:"type:text;not null" json:"title"`
	Agency         string     `gorm:"type:text;not null;default:''" json:"agency"`
	ProtocolNumber string     `gorm:"type:text;not null;default:''" json:"protocol_number"`
	Status         string     `gorm:"type:text;not null;default:'em_andamento'" json:"status"`
	DueDate        *time.Time `json:"due_date"`
	CreatedBy      *string    `gorm:"type:text" json:"created_by"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

// BeforeCreate generates a UUID primary key if not set.
func (p *Process) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// All returns one zero value of every model, in dependency order, for
// AutoMigrate.
func All() []any {
	return []any{
		&Organization{},
		&User{},
		&Profile{},
		&RefreshToken{},
		&ProcessType{},
		&Process{},
	}
}

// StoredStatus returns the raw workflow status.
func (p Process) StoredStatus() string { return p.Status }

// Due returns the due date, if any.
func (p Process) Due() *time.Time { return p.DueDate }
