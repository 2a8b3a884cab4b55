package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("client")

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// request describes one JSON call against a backend.
type request struct {
	service  string
	method   string
	url      string
	body     any
	out      any
	resource string
	id       string
}

// do performs r once. 404 maps to *domain.ErrNotFound and other 4xx
// statuses are marked permanent so they are neither retried nor counted by
// the circuit breaker.
func do(ctx context.Context, httpClient *http.Client, r request) error {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("encode %s request: %w", r.service, err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resilience.Permanent(&domain.ErrNotFound{Resource: r.resource, ID: r.id})
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resilience.Permanent(fmt.Errorf("%s API returned status %d: %s", r.service, resp.StatusCode, bytes.TrimSpace(msg)))
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s API returned status %d", r.service, resp.StatusCode)
	}

	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil && err != io.EOF {
		return resilience.Permanent(fmt.Errorf("decode %s response: %w", r.service, err))
	}
	return nil
}

// classify passes through the errors the HTTP layer maps on its own and
// wraps everything else as an external service failure.
func classify(service string, err error) error {
	if err == nil {
		return nil
	}
	var (
		notFound *domain.ErrNotFound
		open     *domain.ErrCircuitOpen
		timeout  *domain.ErrTimeout
	)
	switch {
	case errors.As(err, &notFound):
		return notFound
	case errors.As(err, &open):
		return open
	case errors.As(err, &timeout):
		return timeout
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
