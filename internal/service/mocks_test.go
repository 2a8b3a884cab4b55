package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/infra/cache"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"
	"github.com/boddenberg/profile-bff-go/internal/infra/session"
	"github.com/boddenberg/profile-bff-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// mockRecords is an in-memory records backend that counts calls.
type mockRecords struct {
	mu        sync.Mutex
	profiles  map[string]domain.ProfileRecord
	addresses map[string][]domain.AddressRecord
	calls     map[string]int

	// failCreateAddressAt makes the n-th CreateAddress call (1-based) fail.
	failCreateAddressAt int
	err                 error
}

func newMockRecords() *mockRecords {
	return &mockRecords{
		profiles:  make(map[string]domain.ProfileRecord),
		addresses: make(map[string][]domain.AddressRecord),
		calls:     make(map[string]int),
	}
}

func (m *mockRecords) record(op string) error {
	m.calls[op]++
	return m.err
}

func (m *mockRecords) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockRecords) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockRecords) ListProfiles(_ context.Context) ([]domain.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListProfiles"); err != nil {
		return nil, err
	}
	out := make([]domain.ProfileRecord, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRecords) GetProfile(_ context.Context, cpf string) (*domain.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetProfile"); err != nil {
		return nil, err
	}
	p, ok := m.profiles[cpf]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: cpf}
	}
	return &p, nil
}

func (m *mockRecords) CreateProfile(_ context.Context, p *domain.ProfileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateProfile"); err != nil {
		return err
	}
	m.profiles[p.CPF] = *p
	return nil
}

func (m *mockRecords) UpdateProfile(_ context.Context, cpf string, p *domain.ProfileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateProfile"); err != nil {
		return err
	}
	delete(m.profiles, cpf)
	m.profiles[p.CPF] = *p
	return nil
}

func (m *mockRecords) DeleteProfile(_ context.Context, cpf string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteProfile"); err != nil {
		return err
	}
	delete(m.profiles, cpf)
	delete(m.addresses, cpf)
	return nil
}

func (m *mockRecords) ListAddresses(_ context.Context, cpf string) ([]domain.AddressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListAddresses"); err != nil {
		return nil, err
	}
	return append([]domain.AddressRecord(nil), m.addresses[cpf]...), nil
}

func (m *mockRecords) GetAddress(_ context.Context, cpf, key string) (*domain.AddressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetAddress"); err != nil {
		return nil, err
	}
	for _, a := range m.addresses[cpf] {
		if a.Key() == key {
			return &a, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "address", ID: key}
}

func (m *mockRecords) CreateAddress(_ context.Context, cpf string, a *domain.AddressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateAddress"); err != nil {
		return err
	}
	if m.failCreateAddressAt > 0 && m.calls["CreateAddress"] == m.failCreateAddressAt {
		return &domain.ErrExternalService{Service: "records", Err: errBackend}
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("addr-%d", len(m.addresses[cpf])+1)
	}
	m.addresses[cpf] = append(m.addresses[cpf], *a)
	return nil
}

func (m *mockRecords) UpdateAddress(_ context.Context, cpf, key string, a *domain.AddressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateAddress"); err != nil {
		return err
	}
	list := m.addresses[cpf]
	for i := range list {
		if list[i].Key() == key {
			list[i] = *a
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "address", ID: key}
}

func (m *mockRecords) DeleteAddress(_ context.Context, cpf, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteAddress"); err != nil {
		return err
	}
	list := m.addresses[cpf]
	for i := range list {
		if list[i].Key() == key {
			m.addresses[cpf] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// mockResolver answers every CEP with the same address unless an error is
// queued. Codes listed in block wait on the channel before answering.
type mockResolver struct {
	calls   atomic.Int32
	addr    domain.PostalAddress
	errs    []error
	mu      sync.Mutex
	block   map[string]chan struct{}
	entered chan string
}

func newMockResolver() *mockResolver {
	return &mockResolver{
		addr: domain.PostalAddress{
			Street: "Avenida Paulista",
			City:   "São Paulo",
			State:  "SP",
			Region: "São Paulo",
		},
		block:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
	}
}

func (m *mockResolver) Resolve(ctx context.Context, code string) (*domain.PostalAddress, error) {
	m.calls.Add(1)
	select {
	case m.entered <- code:
	default:
	}

	m.mu.Lock()
	wait := m.block[code]
	var err error
	if len(m.errs) > 0 {
		err, m.errs = m.errs[0], m.errs[1:]
	}
	m.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := m.addr
	out.PostalCode = code
	return &out, nil
}

func (m *mockResolver) hold(code string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.block[code] = ch
	return ch
}

func (m *mockResolver) fail(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// --- Harness ---

type harness struct {
	forms     *service.FormService
	directory *service.DirectoryService
	postal    *service.PostalCodeService
	records   *mockRecords
	resolver  *mockResolver
	metrics   *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	records := newMockRecords()
	resolver := newMockResolver()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	postalCache := cache.New[*domain.PostalAddress](time.Hour)
	listCache := cache.New[any](time.Minute)
	sessionCache := cache.New[[]byte](time.Hour)
	t.Cleanup(func() {
		postalCache.Close()
		listCache.Close()
		sessionCache.Close()
	})

	postal := service.NewPostalCodeService(resolver, postalCache, resilience.NewBulkhead(4), metrics, logger)
	directory := service.NewDirectoryService(records, listCache, metrics, logger)
	forms := service.NewFormService(session.NewMemoryStore(sessionCache), records, directory, postal, "Brasil", metrics, logger)

	return &harness{
		forms:     forms,
		directory: directory,
		postal:    postal,
		records:   records,
		resolver:  resolver,
		metrics:   metrics,
	}
}
