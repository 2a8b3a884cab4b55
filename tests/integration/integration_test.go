package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/form"
	"github.com/boddenberg/profile-bff-go/internal/handler"
	"github.com/boddenberg/profile-bff-go/internal/infra/cache"
	"github.com/boddenberg/profile-bff-go/internal/infra/client"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/infra/resilience"
	"github.com/boddenberg/profile-bff-go/internal/infra/session"
	"github.com/boddenberg/profile-bff-go/internal/service"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

// backend is a stand-in for the records REST backend and its CEP relay.
type backend struct {
	mu        sync.Mutex
	profiles  map[string]domain.ProfileRecord
	addresses map[string][]domain.AddressRecord
	lookups   int
}

func newBackend() *backend {
	return &backend{
		profiles:  make(map[string]domain.ProfileRecord),
		addresses: make(map[string][]domain.AddressRecord),
	}
}

func (b *backend) snapshot() (lookups int, profiles map[string]bool, addresses map[string]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	profiles = make(map[string]bool, len(b.profiles))
	for cpf := range b.profiles {
		profiles[cpf] = true
	}
	addresses = make(map[string]int, len(b.addresses))
	for cpf, list := range b.addresses {
		addresses[cpf] = len(list)
	}
	return b.lookups, profiles, addresses
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /v1/postal-code/{code}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.lookups++
		b.mu.Unlock()
		code := r.PathValue("code")
		if code == "99999999" {
			writeJSON(w, http.StatusOK, map[string]any{"erro": true})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"cep":        code[:5] + "-" + code[5:],
			"logradouro": "Avenida Paulista",
			"localidade": "São Paulo",
			"uf":         "SP",
			"estado":     "São Paulo",
		})
	})

	mux.HandleFunc("GET /v1/profile", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []domain.ProfileRecord{}
		for _, p := range b.profiles {
			out = append(out, p)
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /v1/profile", func(w http.ResponseWriter, r *http.Request) {
		var p domain.ProfileRecord
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.profiles[p.CPF] = p
		b.addresses[p.CPF] = append([]domain.AddressRecord(nil), p.Addresses...)
		writeJSON(w, http.StatusCreated, p)
	})

	mux.HandleFunc("GET /v1/profile/{cpf}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		p, ok := b.profiles[r.PathValue("cpf")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	mux.HandleFunc("GET /v1/profile/{cpf}/address", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.addresses[r.PathValue("cpf")]
		if list == nil {
			list = []domain.AddressRecord{}
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("POST /v1/profile/{cpf}/address", func(w http.ResponseWriter, r *http.Request) {
		var a domain.AddressRecord
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		cpf := r.PathValue("cpf")
		if a.ID == "" {
			a.ID = fmt.Sprintf("addr-%d", len(b.addresses[cpf])+1)
		}
		b.addresses[cpf] = append(b.addresses[cpf], a)
		writeJSON(w, http.StatusCreated, a)
	})

	return mux
}

type bff struct {
	t      *testing.T
	server *httptest.Server
}

func (c *bff) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (c *bff) view(method, path string, body any, want int) form.FormView {
	c.t.Helper()
	resp, data := c.do(method, path, body)
	if resp.StatusCode != want {
		c.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, data)
	}
	var v form.FormView
	if err := json.Unmarshal(data, &v); err != nil {
		c.t.Fatalf("decode view: %v", err)
	}
	return v
}

func startBFF(t *testing.T, backendURL string) *bff {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	records := client.NewRecordsClient(httpClient, backendURL,
		resilience.NewCircuitBreaker("records", logger, metrics.ObserveBreaker), cfg)
	resolver := client.NewPostalCodeClient(httpClient, backendURL,
		resilience.NewCircuitBreaker("postal_code", logger, metrics.ObserveBreaker), cfg)

	mr := miniredis.RunT(t)
	rdb, err := session.Connect(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	sessions := session.NewRedisStore(rdb, 30*time.Minute)

	postalCache := cache.New[*domain.PostalAddress](time.Hour)
	listCache := cache.New[any](time.Minute)
	t.Cleanup(func() {
		postalCache.Close()
		listCache.Close()
	})

	postal := service.NewPostalCodeService(resolver, postalCache, cfg.Bulkhead(), metrics, logger)
	directory := service.NewDirectoryService(records, listCache, metrics, logger)
	forms := service.NewFormService(sessions, records, directory, postal, "Brasil", metrics, logger)
	forms.OnSubmitted(func(_ context.Context, r service.SubmitResult) {
		directory.Invalidate(r.CPF)
	})

	router := handler.NewRouter(handler.Services{Forms: forms, Directory: directory, Postal: postal},
		handler.Options{HealthChecks: []handler.HealthCheck{{Name: "redis", Check: sessions.Health}}},
		metrics, logger)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &bff{t: t, server: server}
}

// TestIntegration_ProfileThenAddress creates a profile through the form
// engine, then adds a second address to it.
func TestIntegration_ProfileThenAddress(t *testing.T) {
	be := newBackend()
	beServer := httptest.NewServer(be.handler())
	defer beServer.Close()

	c := startBFF(t, beServer.URL)

	// --- Profile form ---
	v := c.view(http.MethodPost, "/v1/forms/profile", nil, http.StatusCreated)
	base := "/v1/forms/" + v.ID

	for field, value := range map[string]string{
		"cpf":   "123.456.789-09",
		"name":  "Maria Silva",
		"email": "maria@example.com",
		"phone": "11987654321",
	} {
		c.view(http.MethodPatch, base+"/fields", map[string]any{"field": field, "value": value}, http.StatusOK)
	}

	v = c.view(http.MethodPut, base+"/entries/0/postal-code", map[string]string{"value": "01310100"}, http.StatusOK)
	if v.Entries[0].State != form.StateResolved {
		t.Fatalf("expected resolved entry, got %s", v.Entries[0].State)
	}
	if got := v.Entries[0].Fields["country"]; got.Value != "Brasil" || got.AutoFilled {
		t.Errorf("expected defaulted, editable country, got %+v", got)
	}

	// Same code again does not reach the backend.
	c.view(http.MethodPut, base+"/entries/0/postal-code", map[string]string{"value": "01310-100"}, http.StatusOK)
	if lookups, _, _ := be.snapshot(); lookups != 1 {
		t.Errorf("expected 1 backend lookup, got %d", lookups)
	}

	c.view(http.MethodPost, base+"/addresses", nil, http.StatusOK)

	resp, data := c.do(http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", resp.StatusCode, data)
	}
	if _, profiles, _ := be.snapshot(); !profiles["12345678909"] {
		t.Fatal("expected profile to reach the backend")
	}

	// --- Profile table ---
	resp, data = c.do(http.MethodGet, "/v1/profiles", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list struct {
		Profiles []domain.ProfileRow `json:"profiles"`
	}
	json.Unmarshal(data, &list)
	if len(list.Profiles) != 1 || list.Profiles[0].FormattedPhone != "(11) 98765-4321" {
		t.Errorf("unexpected profile table %+v", list.Profiles)
	}

	// --- Address form ---
	v = c.view(http.MethodPost, "/v1/forms/address", map[string]string{"cpf": "12345678909"}, http.StatusCreated)
	base = "/v1/forms/" + v.ID

	v = c.view(http.MethodPut, base+"/entries/0/postal-code", map[string]string{"value": "99999999"}, http.StatusOK)
	if v.LastLookup == nil || v.LastLookup.Status != form.LookupNotFound {
		t.Fatalf("expected not-found outcome, got %+v", v.LastLookup)
	}

	v = c.view(http.MethodPut, base+"/entries/0/postal-code", map[string]string{"value": "20040020"}, http.StatusOK)
	if !v.CanSubmit {
		t.Fatalf("expected submittable address form, errors: %+v", v.Errors)
	}

	resp, data = c.do(http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit address: expected 200, got %d: %s", resp.StatusCode, data)
	}
	var submitted service.SubmitResult
	if err := json.Unmarshal(data, &submitted); err != nil {
		t.Fatalf("decode submit result: %v", err)
	}
	if len(submitted.Addresses) != 1 || submitted.Addresses[0].ID != "addr-2" {
		t.Errorf("expected the backend-assigned id in the result, got %+v", submitted.Addresses)
	}
	if _, _, addrs := be.snapshot(); addrs["12345678909"] != 2 {
		t.Errorf("expected 2 addresses on the backend, got %d", addrs["12345678909"])
	}

	resp, data = c.do(http.MethodGet, "/v1/profiles/12345678909/addresses", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("addresses: expected 200, got %d", resp.StatusCode)
	}
	var addresses struct {
		Total int `json:"total"`
	}
	json.Unmarshal(data, &addresses)
	if addresses.Total != 2 {
		t.Errorf("expected 2 addresses listed, got %d", addresses.Total)
	}
}

// TestIntegration_BackendDown keeps the form when persistence fails.
func TestIntegration_BackendDown(t *testing.T) {
	be := newBackend()
	beServer := httptest.NewServer(be.handler())
	c := startBFF(t, beServer.URL)

	v := c.view(http.MethodPost, "/v1/forms/address", map[string]string{"cpf": "12345678909"}, http.StatusCreated)
	base := "/v1/forms/" + v.ID
	c.view(http.MethodPut, base+"/entries/0/postal-code", map[string]string{"value": "01310100"}, http.StatusOK)

	beServer.Close()

	resp, data := c.do(http.MethodPost, base+"/submit", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", resp.StatusCode, data)
	}

	v = c.view(http.MethodGet, base, nil, http.StatusOK)
	if !v.CanSubmit {
		t.Error("expected the form to survive the failed submit")
	}
}
