package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/profile-bff-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProfile(h *harness) {
	h.records.profiles[ownerCPF] = domain.ProfileRecord{
		CPF: ownerCPF, Name: "Maria", Email: "maria@example.com", Phone: "11987654321",
		Addresses: []domain.AddressRecord{{Street: "embedded"}},
	}
	h.records.addresses[ownerCPF] = []domain.AddressRecord{{
		ID: "a1", Street: "Rua A", City: "São Paulo", State: "SP", Country: "Brasil",
		PostalCode: "01310-100", AddressType: domain.AddressResidential,
	}}
}

func TestDirectoryService_ListProfilesIsCached(t *testing.T) {
	h := newHarness(t)
	seedProfile(h)
	ctx := context.Background()

	rows, err := h.directory.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "123.456.789-09", rows[0].MaskedCPF)
	assert.Equal(t, "(11) 98765-4321", rows[0].FormattedPhone)

	_, err = h.directory.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.records.count("ListProfiles"))

	require.NoError(t, h.directory.DeleteProfile(ctx, "123.456.789-09"))
	rows, err = h.directory.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 2, h.records.count("ListProfiles"))
}

func TestDirectoryService_ListAddresses(t *testing.T) {
	h := newHarness(t)
	seedProfile(h)
	ctx := context.Background()

	list, err := h.directory.ListAddresses(ctx, ownerCPF)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, h.directory.DeleteAddress(ctx, ownerCPF, "a1"))
	list, err = h.directory.ListAddresses(ctx, ownerCPF)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
	assert.Equal(t, 2, h.records.count("ListAddresses"))

	var validation *domain.ErrValidation
	assert.ErrorAs(t, h.directory.DeleteAddress(ctx, ownerCPF, " "), &validation)
	_, err = h.directory.ListAddresses(ctx, "abc")
	assert.ErrorAs(t, err, &validation)
}

func TestDirectoryService_LoadProfilePrefersAddressList(t *testing.T) {
	h := newHarness(t)
	seedProfile(h)

	p, err := h.directory.LoadProfile(context.Background(), ownerCPF)
	require.NoError(t, err)
	require.Len(t, p.Addresses, 1)
	assert.Equal(t, "a1", p.Addresses[0].ID)
	assert.Equal(t, 1, h.records.count("GetProfile"))
	assert.Equal(t, 1, h.records.count("ListAddresses"))
}

func TestDirectoryService_LoadProfileNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.directory.LoadProfile(context.Background(), ownerCPF)
	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestDirectoryService_LoadAddressKeepsLoadKey(t *testing.T) {
	h := newHarness(t)
	h.records.addresses[ownerCPF] = []domain.AddressRecord{{
		Street: "Rua A", PostalCode: "01310-100",
	}}

	cpf, a, err := h.directory.LoadAddress(context.Background(), "123.456.789-09", "01310-100")
	require.NoError(t, err)
	assert.Equal(t, ownerCPF, cpf)
	assert.Empty(t, a.ID)
	assert.Equal(t, "01310-100", a.Key())
}
