package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services are the application services the router exposes.
type Services struct {
	Forms     *service.FormService
	Directory *service.DirectoryService
	Postal    *service.PostalCodeService
}

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options tune the router's middleware. Zero values disable rate limiting
// and authentication.
type Options struct {
	AllowedOrigins []string
	RateLimiter    *IPRateLimiter
	Verifier       *service.TokenVerifier
	HealthChecks   []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.HealthChecks, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}
		if opts.Verifier != nil {
			r.Use(JWTAuthMiddleware(opts.Verifier, logger))
		}

		// =============================================
		// Profile and address tables
		// =============================================
		r.Get("/profiles", listProfilesHandler(svc.Directory, logger))
		r.Delete("/profiles/{cpf}", deleteProfileHandler(svc.Directory, logger))
		r.Get("/profiles/{cpf}/addresses", listAddressesHandler(svc.Directory, logger))
		r.Delete("/profiles/{cpf}/addresses/{addressKey}", deleteAddressHandler(svc.Directory, logger))

		// =============================================
		// CEP lookup
		// =============================================
		r.Get("/postal-code/{code}", postalCodeHandler(svc.Postal, logger))

		// =============================================
		// Forms
		// =============================================
		r.Route("/forms", func(r chi.Router) {
			r.Post("/profile", openProfileFormHandler(svc.Forms, logger))
			r.Post("/address", openAddressFormHandler(svc.Forms, logger))

			r.Route("/{formId}", func(r chi.Router) {
				r.Get("/", getFormHandler(svc.Forms, logger))
				r.Delete("/", closeFormHandler(svc.Forms, logger))
				r.Post("/reset", resetFormHandler(svc.Forms, logger))
				r.Patch("/fields", setFieldHandler(svc.Forms, logger))
				r.Post("/entries", addEntryHandler(svc.Forms, logger))
				r.Post("/entries/{entry}/postal-code/focus", focusPostalCodeHandler(svc.Forms, logger))
				r.Put("/entries/{entry}/postal-code", changePostalCodeHandler(svc.Forms, logger))
				r.Post("/addresses", addAddressHandler(svc.Forms, logger))
				r.Delete("/addresses/{index}", removeAddressHandler(svc.Forms, logger))
				r.Post("/submit", submitFormHandler(svc.Forms, logger))
			})
		})

		// =============================================
		// Form metrics
		// =============================================
		r.Get("/metrics/forms", formMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "profile-bff", Status: "healthy", LastChecked: now},
		}
		overall := "healthy"

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			start := time.Now()
			err := c.Check(ctx)
			cancel()

			h := domain.ServiceHealth{
				Name:        c.Name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				logger.Warn("health check failed", zap.String("dependency", c.Name), zap.Error(err))
				h.Status = "degraded"
				h.Detail = err.Error()
				overall = "degraded"
			}
			services = append(services, h)
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func formMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetFormSnapshot())
	}
}
