package form

import (
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"
)

// Kind tells which record a session edits.
type Kind string

const (
	KindProfile Kind = "profile"
	KindAddress Kind = "address"
)

// LookupStatus is the outcome of the last lookup run for a session.
type LookupStatus string

const (
	LookupResolved LookupStatus = "resolved"
	LookupNotFound LookupStatus = "not_found"
	LookupFailed   LookupStatus = "failed"
	LookupStale    LookupStatus = "stale"
)

// LookupOutcome describes the last lookup of a session for display.
type LookupOutcome struct {
	Entry   int          `json:"entry"`
	Code    string       `json:"code"`
	Status  LookupStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Session is the persisted state of one open form. Exactly one of Profile
// or Address is set, according to Kind.
type Session struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Profile    *ProfileForm   `json:"profile,omitempty"`
	Address    *AddressForm   `json:"address,omitempty"`
	LastLookup *LookupOutcome `json:"lastLookup,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// NewProfileSession wraps a profile form.
func NewProfileSession(id string, initial *domain.ProfileRecord, now time.Time) *Session {
	return &Session{ID: id, Kind: KindProfile, Profile: NewProfileForm(initial), CreatedAt: now, UpdatedAt: now}
}

// NewAddressSession wraps an address form for owner.
func NewAddressSession(id, owner string, initial *domain.AddressRecord, now time.Time) *Session {
	return &Session{ID: id, Kind: KindAddress, Address: NewAddressForm(owner, initial), CreatedAt: now, UpdatedAt: now}
}

// Mode returns the mode of the wrapped form.
func (s *Session) Mode() Mode {
	if s.Kind == KindProfile {
		return s.Profile.Mode
	}
	return s.Address.Mode
}

// EntryAt returns address entry index of the wrapped form.
func (s *Session) EntryAt(index int) (*AddressEntry, error) {
	if s.Kind == KindProfile {
		return s.Profile.EntryAt(index)
	}
	return s.Address.EntryAt(index)
}

// Reset restores the wrapped form to its initial values.
func (s *Session) Reset() {
	s.LastLookup = nil
	if s.Kind == KindProfile {
		s.Profile.Reset()
		return
	}
	s.Address.Reset()
}

// CanSubmit reports whether the wrapped form passes its submission gate.
func (s *Session) CanSubmit() bool {
	if s.Kind == KindProfile {
		return s.Profile.CanSubmit()
	}
	return s.Address.CanSubmit()
}

// Pending reports whether any entry waits on a lookup.
func (s *Session) Pending() bool {
	for _, e := range s.entries() {
		if e.Pending() {
			return true
		}
	}
	return false
}

func (s *Session) entries() []*AddressEntry {
	if s.Kind == KindProfile {
		return []*AddressEntry{s.Profile.Entry}
	}
	return s.Address.Entries
}
