// Package storage persists dynamically managed client registrations: entries
// created through the admin API rather than bound from configuration. The
// raw properties are stored unresolved; template defaulting happens when a
// registration is used, with the same resolver the static set goes through.
package storage

import (
	"context"
	"time"

	"authgate/internal/registration"
)

// RegistrationRecord is one dynamically managed registration entry.
// Properties.ClientSecret holds the secret encrypted at rest; decryption is
// the caller's concern.
type RegistrationRecord struct {
	// ID is the registration id. Unique and case-sensitive, like the keys
	// of the static registration map.
	ID         string                          `json:"id"`
	Properties registration.ClientProperties   `json:"properties"`
	Enabled    bool                            `json:"enabled"`
	CreatedAt  time.Time                       `json:"created_at"`
	UpdatedAt  time.Time                       `json:"updated_at"`
}

// RegistrationStore defines persistence for dynamic registrations.
type RegistrationStore interface {
	// CreateRegistration stores a new registration entry.
	CreateRegistration(ctx context.Context, rec *RegistrationRecord) error

	// GetRegistration retrieves a registration by id.
	GetRegistration(ctx context.Context, id string) (*RegistrationRecord, error)

	// ListRegistrations returns all stored registrations ordered by id.
	ListRegistrations(ctx context.Context) ([]*RegistrationRecord, error)

	// ListEnabledRegistrations returns only enabled registrations, ordered by id.
	ListEnabledRegistrations(ctx context.Context) ([]*RegistrationRecord, error)

	// UpdateRegistration replaces an existing registration entry.
	UpdateRegistration(ctx context.Context, rec *RegistrationRecord) error

	// DeleteRegistration removes a registration by id.
	DeleteRegistration(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}
