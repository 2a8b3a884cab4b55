package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const postalCodeService = "postal-code"

// viaCEPResponse is the lookup payload as the backend relays it.
type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Estado     string `json:"estado"`
	Pais       string `json:"pais"`
	// Erro is true, or "true", when the code does not exist.
	Erro any `json:"erro"`
}

func (r viaCEPResponse) notFound() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// PostalCodeClient resolves CEPs through the backend lookup endpoint.
type PostalCodeClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewPostalCodeClient creates a new PostalCodeClient.
func NewPostalCodeClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *PostalCodeClient {
	return &PostalCodeClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// Resolve looks up code (8 digits) with retry, circuit breaker, and tracing.
func (c *PostalCodeClient) Resolve(ctx context.Context, code string) (*domain.PostalAddress, error) {
	ctx, span := tracer.Start(ctx, "PostalCodeClient.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("postal_code", code))

	payload, err := resilience.Call(ctx, c.cb, c.cfg, func(ctx context.Context) (*viaCEPResponse, error) {
		var out viaCEPResponse
		err := do(ctx, c.httpClient, request{
			service:  postalCodeService,
			method:   http.MethodGet,
			url:      fmt.Sprintf("%s/v1/postal-code/%s", c.baseURL, code),
			out:      &out,
			resource: "postal code",
			id:       code,
		})
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, classify(postalCodeService, err)
	}
	if payload.notFound() {
		return nil, &domain.ErrNotFound{Resource: "postal code", ID: code}
	}

	return &domain.PostalAddress{
		PostalCode: code,
		Street:     strings.TrimSpace(payload.Logradouro),
		City:       strings.TrimSpace(payload.Localidade),
		State:      strings.TrimSpace(payload.UF),
		Country:    strings.TrimSpace(payload.Pais),
		Region:     strings.TrimSpace(payload.Estado),
	}, nil
}
