package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External services
	BackendAPIURL    string // records REST backend (/v1/profile...)
	PostalCodeAPIURL string // CEP lookup; defaults to the records backend

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	PostalCodeCacheTTL time.Duration
	ListCacheTTL       time.Duration

	// Form sessions
	FormSessionTTL time.Duration
	RedisURL       string // empty keeps sessions in memory
	DefaultCountry string

	// Observability
	OTLPEndpoint string

	// HTTP edge
	AuthJWTSecret      string // empty disables bearer auth
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	backend := getEnv("BACKEND_API_URL", "http://localhost:8081")

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendAPIURL:    strings.TrimRight(backend, "/"),
		PostalCodeAPIURL: strings.TrimRight(getEnv("POSTAL_CODE_API_URL", backend), "/"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		PostalCodeCacheTTL: getEnvDuration("POSTAL_CODE_CACHE_TTL", 24*time.Hour),
		ListCacheTTL:       getEnvDuration("LIST_CACHE_TTL", 30*time.Second),

		FormSessionTTL: getEnvDuration("FORM_SESSION_TTL", 30*time.Minute),
		RedisURL:       getEnv("REDIS_URL", ""),
		DefaultCountry: getEnv("DEFAULT_COUNTRY", "Brasil"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
