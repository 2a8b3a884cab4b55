package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/form"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	listCacheName   = "directory"
	profilesListKey = "profiles"
)

func addressesListKey(cpf string) string {
	return "addresses:" + cpf
}

// DirectoryService serves the profile and address tables and loads records
// for editing. Listings are cached briefly and invalidated on every write.
type DirectoryService struct {
	records port.RecordStore
	cache   port.Cache[any]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDirectoryService creates the directory service.
func NewDirectoryService(records port.RecordStore, cache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		records: records,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// ListProfiles returns the profile table.
func (d *DirectoryService) ListProfiles(ctx context.Context) ([]domain.ProfileRow, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.ListProfiles")
	defer span.End()

	if cached, ok := d.cache.Get(profilesListKey); ok {
		if rows, ok := cached.([]domain.ProfileRow); ok {
			d.metrics.IncrCacheHit(listCacheName)
			return rows, nil
		}
	}
	d.metrics.IncrCacheMiss(listCacheName)

	profiles, err := d.records.ListProfiles(ctx)
	if err != nil {
		d.metrics.IncrExternalError("records")
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	rows := make([]domain.ProfileRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, profileRow(p))
	}
	d.cache.Set(profilesListKey, rows)
	return rows, nil
}

// ListAddresses returns the address table of a profile.
func (d *DirectoryService) ListAddresses(ctx context.Context, rawCPF string) ([]domain.AddressRecord, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.ListAddresses")
	defer span.End()

	cpf, err := normalizeCPF(rawCPF)
	if err != nil {
		return nil, err
	}

	key := addressesListKey(cpf)
	if cached, ok := d.cache.Get(key); ok {
		if list, ok := cached.([]domain.AddressRecord); ok {
			d.metrics.IncrCacheHit(listCacheName)
			return list, nil
		}
	}
	d.metrics.IncrCacheMiss(listCacheName)

	list, err := d.records.ListAddresses(ctx, cpf)
	if err != nil {
		d.metrics.IncrExternalError("records")
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	if list == nil {
		list = []domain.AddressRecord{}
	}
	d.cache.Set(key, list)
	return list, nil
}

// DeleteProfile removes a profile.
func (d *DirectoryService) DeleteProfile(ctx context.Context, rawCPF string) error {
	ctx, span := tracer.Start(ctx, "DirectoryService.DeleteProfile")
	defer span.End()

	cpf, err := normalizeCPF(rawCPF)
	if err != nil {
		return err
	}
	if err := d.records.DeleteProfile(ctx, cpf); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	d.Invalidate(cpf)
	d.logger.Info("profile deleted", zap.String("cpf", MaskCPF(cpf)))
	return nil
}

// DeleteAddress removes one address of a profile.
func (d *DirectoryService) DeleteAddress(ctx context.Context, rawCPF, key string) error {
	ctx, span := tracer.Start(ctx, "DirectoryService.DeleteAddress")
	defer span.End()

	cpf, err := normalizeCPF(rawCPF)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return &domain.ErrValidation{Field: "addressKey", Message: "endereço não informado"}
	}
	if err := d.records.DeleteAddress(ctx, cpf, key); err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	d.Invalidate(cpf)
	return nil
}

// LoadProfile fetches a profile and its addresses concurrently for editing.
// The address listing wins over addresses embedded in the profile.
func (d *DirectoryService) LoadProfile(ctx context.Context, rawCPF string) (*domain.ProfileRecord, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.LoadProfile")
	defer span.End()

	cpf, err := normalizeCPF(rawCPF)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("profile.cpf", MaskCPF(cpf)))

	var (
		profile   *domain.ProfileRecord
		addresses []domain.AddressRecord
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := d.records.GetProfile(gCtx, cpf)
		if err != nil {
			return fmt.Errorf("profile fetch: %w", err)
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		list, err := d.records.ListAddresses(gCtx, cpf)
		if err != nil {
			return fmt.Errorf("addresses fetch: %w", err)
		}
		addresses = list
		return nil
	})

	if err := g.Wait(); err != nil {
		d.logger.Error("failed to load profile",
			zap.String("cpf", MaskCPF(cpf)),
			zap.Error(err),
		)
		return nil, err
	}

	if len(addresses) > 0 {
		profile.Addresses = addresses
	}
	if profile.CPF == "" {
		profile.CPF = cpf
	}
	return profile, nil
}

// LoadAddress fetches one address of a profile for editing.
func (d *DirectoryService) LoadAddress(ctx context.Context, rawCPF, key string) (string, *domain.AddressRecord, error) {
	ctx, span := tracer.Start(ctx, "DirectoryService.LoadAddress")
	defer span.End()

	cpf, err := normalizeCPF(rawCPF)
	if err != nil {
		return "", nil, err
	}
	a, err := d.records.GetAddress(ctx, cpf, key)
	if err != nil {
		return "", nil, fmt.Errorf("address fetch: %w", err)
	}
	// Keep updates on the key the record was loaded by.
	if a.ID == "" && form.PostalCodeDigits(key) != form.PostalCodeDigits(a.PostalCode) {
		a.ID = key
	}
	return cpf, a, nil
}

// Invalidate drops the cached listings touched by a write on cpf.
func (d *DirectoryService) Invalidate(cpf string) {
	d.cache.Delete(profilesListKey)
	if cpf != "" {
		d.cache.Delete(addressesListKey(cpf))
	}
}
