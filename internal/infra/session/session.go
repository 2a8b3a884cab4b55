// Package session stores open form sessions as JSON, either in process
// memory or in Redis so several BFF instances can share them.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/form"
	"github.com/boddenberg/profile-bff-go/internal/infra/cache"
)

func encode(s *form.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode form session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*form.Session, error) {
	var s form.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode form session %s: %w", id, err)
	}
	return &s, nil
}

func notFound(id string) error {
	return &domain.ErrNotFound{Resource: "form", ID: id}
}

// MemoryStore keeps sessions in a TTL cache. Every Save renews the TTL.
type MemoryStore struct {
	cache *cache.InMemory[[]byte]
}

// NewMemoryStore wraps c.
func NewMemoryStore(c *cache.InMemory[[]byte]) *MemoryStore {
	return &MemoryStore{cache: c}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, id string) (*form.Session, error) {
	data, ok := m.cache.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	return decode(id, data)
}

// Save stores s.
func (m *MemoryStore) Save(_ context.Context, s *form.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.cache.Set(s.ID, data)
	return nil
}

// Delete discards the session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}
