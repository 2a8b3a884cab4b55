package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const recordsService = "records"

// RecordsClient talks to the profile/address REST backend.
// Reads are retried; writes are attempted once. Creates and updates decode
// the persisted record the backend answers with into the record passed in.
type RecordsClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewRecordsClient creates a new RecordsClient.
func NewRecordsClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *RecordsClient {
	return &RecordsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

func (c *RecordsClient) profileURL(cpf string) string {
	if cpf == "" {
		return c.baseURL + "/v1/profile"
	}
	return fmt.Sprintf("%s/v1/profile/%s", c.baseURL, url.PathEscape(cpf))
}

func (c *RecordsClient) addressURL(cpf, key string) string {
	u := c.profileURL(cpf) + "/address"
	if key != "" {
		u += "/" + url.PathEscape(key)
	}
	return u
}

// call runs r through the breaker. Only GETs are retried.
func (c *RecordsClient) call(ctx context.Context, spanName string, r request) error {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.String("record.resource", r.resource),
	)

	cfg := c.cfg
	if r.method != http.MethodGet {
		cfg.MaxRetries = 0
	}
	r.service = recordsService

	_, err := resilience.Call(ctx, c.cb, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, do(ctx, c.httpClient, r)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return classify(recordsService, err)
}

// ListProfiles returns every profile.
func (c *RecordsClient) ListProfiles(ctx context.Context) ([]domain.ProfileRecord, error) {
	var out []domain.ProfileRecord
	err := c.call(ctx, "RecordsClient.ListProfiles", request{
		method: http.MethodGet, url: c.profileURL(""), out: &out, resource: "profiles",
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProfile fetches one profile by CPF.
func (c *RecordsClient) GetProfile(ctx context.Context, cpf string) (*domain.ProfileRecord, error) {
	var out domain.ProfileRecord
	err := c.call(ctx, "RecordsClient.GetProfile", request{
		method: http.MethodGet, url: c.profileURL(cpf), out: &out, resource: "profile", id: cpf,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProfile creates p.
func (c *RecordsClient) CreateProfile(ctx context.Context, p *domain.ProfileRecord) error {
	return c.call(ctx, "RecordsClient.CreateProfile", request{
		method: http.MethodPost, url: c.profileURL(""), body: p, out: p, resource: "profile", id: p.CPF,
	})
}

// UpdateProfile replaces the profile stored under cpf.
func (c *RecordsClient) UpdateProfile(ctx context.Context, cpf string, p *domain.ProfileRecord) error {
	return c.call(ctx, "RecordsClient.UpdateProfile", request{
		method: http.MethodPut, url: c.profileURL(cpf), body: p, out: p, resource: "profile", id: cpf,
	})
}

// DeleteProfile removes the profile stored under cpf.
func (c *RecordsClient) DeleteProfile(ctx context.Context, cpf string) error {
	return c.call(ctx, "RecordsClient.DeleteProfile", request{
		method: http.MethodDelete, url: c.profileURL(cpf), resource: "profile", id: cpf,
	})
}

// ListAddresses returns the addresses of a profile.
func (c *RecordsClient) ListAddresses(ctx context.Context, cpf string) ([]domain.AddressRecord, error) {
	var out []domain.AddressRecord
	err := c.call(ctx, "RecordsClient.ListAddresses", request{
		method: http.MethodGet, url: c.addressURL(cpf, ""), out: &out, resource: "profile", id: cpf,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAddress fetches one address of a profile.
func (c *RecordsClient) GetAddress(ctx context.Context, cpf, key string) (*domain.AddressRecord, error) {
	var out domain.AddressRecord
	err := c.call(ctx, "RecordsClient.GetAddress", request{
		method: http.MethodGet, url: c.addressURL(cpf, key), out: &out, resource: "address", id: key,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAddress adds a to the profile.
func (c *RecordsClient) CreateAddress(ctx context.Context, cpf string, a *domain.AddressRecord) error {
	return c.call(ctx, "RecordsClient.CreateAddress", request{
		method: http.MethodPost, url: c.addressURL(cpf, ""), body: a, out: a, resource: "profile", id: cpf,
	})
}

// UpdateAddress replaces the address stored under key.
func (c *RecordsClient) UpdateAddress(ctx context.Context, cpf, key string, a *domain.AddressRecord) error {
	return c.call(ctx, "RecordsClient.UpdateAddress", request{
		method: http.MethodPut, url: c.addressURL(cpf, key), body: a, out: a, resource: "address", id: key,
	})
}

// DeleteAddress removes the address stored under key.
func (c *RecordsClient) DeleteAddress(ctx context.Context, cpf, key string) error {
	return c.call(ctx, "RecordsClient.DeleteAddress", request{
		method: http.MethodDelete, url: c.addressURL(cpf, key), resource: "address", id: key,
	})
}
