// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the form engine
// and services from the records backend, the postal-code provider and the
// session storage.
package port

import (
	"context"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/form"
)

// PostalCodeResolver resolves an 8-digit CEP into address fields.
// Unknown codes yield *domain.ErrNotFound.
type PostalCodeResolver interface {
	Resolve(ctx context.Context, code string) (*domain.PostalAddress, error)
}

// ProfileStore persists profiles on the records backend. Create and update
// write the persisted record back into p.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]domain.ProfileRecord, error)
	GetProfile(ctx context.Context, cpf string) (*domain.ProfileRecord, error)
	CreateProfile(ctx context.Context, p *domain.ProfileRecord) error
	UpdateProfile(ctx context.Context, cpf string, p *domain.ProfileRecord) error
	DeleteProfile(ctx context.Context, cpf string) error
}

// AddressStore persists the addresses of a profile. key is the address
// identifier, or its postal code on backends that carry no identifier.
// Create and update write the persisted record, with any backend-assigned
// id, back into a.
type AddressStore interface {
	ListAddresses(ctx context.Context, cpf string) ([]domain.AddressRecord, error)
	GetAddress(ctx context.Context, cpf, key string) (*domain.AddressRecord, error)
	CreateAddress(ctx context.Context, cpf string, a *domain.AddressRecord) error
	UpdateAddress(ctx context.Context, cpf, key string, a *domain.AddressRecord) error
	DeleteAddress(ctx context.Context, cpf, key string) error
}

// RecordStore is the full records backend.
type RecordStore interface {
	ProfileStore
	AddressStore
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// SessionStore keeps open form sessions between requests.
// Get returns *domain.ErrNotFound for unknown or expired sessions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*form.Session, error)
	Save(ctx context.Context, s *form.Session) error
	Delete(ctx context.Context, id string) error
}
