package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/profile-bff-go/internal/infra/observability"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetFormSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordLookup(observability.LookupResolved)
	m.RecordLookup(observability.LookupCached)
	m.RecordLookup(observability.LookupNotFound)
	m.RecordLookup(observability.LookupFailed)
	m.IncrStaleLookup()
	m.RecordSubmit("profile", observability.SubmitAccepted)
	m.RecordSubmit("address", observability.SubmitAccepted)
	m.RecordSubmit("profile", observability.SubmitRejected)

	obs := m.CacheObserver("postal_code")
	obs(true)
	obs(false)
	obs(true)
	obs(true)

	snap := m.GetFormSnapshot()
	if snap.LookupsResolved != 2 {
		t.Errorf("expected 2 resolved lookups, got %d", snap.LookupsResolved)
	}
	if snap.LookupsNotFound != 1 || snap.LookupsFailed != 1 {
		t.Errorf("unexpected failure counts %+v", snap)
	}
	if snap.StaleSuppressed != 1 {
		t.Errorf("expected 1 stale lookup, got %d", snap.StaleSuppressed)
	}
	if snap.SubmitsAccepted != 2 || snap.SubmitsRejected != 1 || snap.SubmitsFailed != 0 {
		t.Errorf("unexpected submit counts %+v", snap)
	}
	if snap.PostalCacheHitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %f", snap.PostalCacheHitRate)
	}
}

func TestNewMetrics_Independent(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.RecordLookup(observability.LookupResolved)
	a.ObserveBreaker("records", gobreaker.StateClosed, gobreaker.StateOpen)

	if b.GetFormSnapshot().LookupsResolved != 0 {
		t.Fatal("expected registries to be independent")
	}
}

func TestZapLoggerMiddleware_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		h := observability.ZapLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/profiles", nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	want := []string{"info", "warn", "error"}
	for i, e := range entries {
		if e.Level.String() != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Level)
		}
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "profile-bff-test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "bogus"} {
		if observability.NewLogger(level) == nil {
			t.Errorf("expected logger for level %q", level)
		}
	}
}
