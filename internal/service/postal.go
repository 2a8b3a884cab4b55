package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/form"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"
	"github.com/boddenberg/profile-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service")

const postalCacheName = "postal_code"

// PostalCodeService resolves CEPs with a TTL cache in front of the lookup
// collaborator. Concurrent lookups of the same code share one call.
type PostalCodeService struct {
	resolver port.PostalCodeResolver
	cache    port.Cache[*domain.PostalAddress]
	bulkhead *resilience.Bulkhead
	group    singleflight.Group
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewPostalCodeService creates the lookup service.
func NewPostalCodeService(
	resolver port.PostalCodeResolver,
	cache port.Cache[*domain.PostalAddress],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PostalCodeService {
	return &PostalCodeService{
		resolver: resolver,
		cache:    cache,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
	}
}

// Lookup resolves raw, which may carry a mask. Incomplete codes are a
// validation error; unknown codes are *domain.ErrNotFound.
func (s *PostalCodeService) Lookup(ctx context.Context, raw string) (*domain.PostalAddress, error) {
	ctx, span := tracer.Start(ctx, "PostalCodeService.Lookup")
	defer span.End()

	code := form.PostalCodeDigits(raw)
	if !form.IsCompletePostalCode(code) {
		return nil, &domain.ErrValidation{Field: "postalCode", Message: "CEP deve ter 8 dígitos"}
	}
	span.SetAttributes(attribute.String("postal_code", code))

	if cached, ok := s.cache.Get(code); ok {
		s.metrics.IncrCacheHit(postalCacheName)
		s.metrics.RecordLookup(observability.LookupCached)
		out := *cached
		return &out, nil
	}
	s.metrics.IncrCacheMiss(postalCacheName)

	start := time.Now()
	ch := s.group.DoChan(code, func() (any, error) {
		// The shared call outlives any single caller's cancellation.
		callCtx := context.WithoutCancel(ctx)
		if err := s.bulkhead.Acquire(callCtx); err != nil {
			return nil, err
		}
		defer s.bulkhead.Release()

		addr, err := s.resolver.Resolve(callCtx, code)
		if err != nil {
			return nil, err
		}
		s.cache.Set(code, addr)
		return addr, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	s.metrics.RecordRequestDuration("postal_code_lookup", time.Since(start))

	if res.Err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(res.Err, &notFound) {
			s.metrics.RecordLookup(observability.LookupNotFound)
			return nil, res.Err
		}
		s.metrics.RecordLookup(observability.LookupFailed)
		s.metrics.IncrExternalError(postalCacheName)
		s.logger.Warn("postal code lookup failed",
			zap.String("postal_code", code),
			zap.Error(res.Err),
		)
		return nil, fmt.Errorf("postal code lookup: %w", res.Err)
	}

	s.metrics.RecordLookup(observability.LookupResolved)
	out := *res.Val.(*domain.PostalAddress)
	return &out, nil
}
