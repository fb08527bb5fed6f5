// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	// DBDriver is "sqlite" (default) or "pgx".
	DBDriver    string
	DatabaseURL string

	ORSBaseURL string
	// Shared fallback provider key. Optional: callers may bring their own.
	ORSAPIKey  string
	ORSProfile string

	GeocodeCountry      string
	GeocodeInterval     time.Duration
	SolveInterval       time.Duration
	ProviderTimeout     time.Duration
	ProviderMaxAttempts int

	// Solver is "ors" or "nearest".
	Solver string

	// Empty RedisURL selects in-process route leases.
	RedisURL    string
	RunLeaseTTL time.Duration

	// Empty JWTSecret disables bearer identity.
	JWTSecret   string
	CORSOrigins []string
}

// Load reads configuration from the environment. It returns an error naming
// every variable that is missing or malformed.
func Load() (Config, error) {
	cfg := Config{
		Port:           Get("PORT", "8080"),
		LogLevel:       Get("LOG_LEVEL", "info"),
		DBDriver:       Get("DB_DRIVER", "sqlite"),
		ORSBaseURL:     Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSAPIKey:      strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSProfile:     Get("ORS_PROFILE", "driving-car"),
		GeocodeCountry: os.Getenv("GEOCODE_COUNTRY"),
		Solver:         Get("SOLVER", "ors"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		CORSOrigins:    splitCSV(Get("CORS_ORIGINS", "*")),
	}

	var problems []string

	switch cfg.DBDriver {
	case "sqlite":
		cfg.DatabaseURL = Get("DATABASE_URL", "data/app.db")
	case "pgx":
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL (required when DB_DRIVER=pgx)")
		}
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER (unknown driver %q)", cfg.DBDriver))
	}

	switch cfg.Solver {
	case "ors", "nearest":
	default:
		problems = append(problems, fmt.Sprintf("SOLVER (unknown solver %q)", cfg.Solver))
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"GEOCODE_INTERVAL", "1100ms", &cfg.GeocodeInterval},
		{"SOLVE_INTERVAL", "1500ms", &cfg.SolveInterval},
		{"PROVIDER_TIMEOUT", "12s", &cfg.ProviderTimeout},
		{"RUN_LEASE_TTL", "2m", &cfg.RunLeaseTTL},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(Get(d.key, d.fallback))
		if err != nil || v < 0 {
			problems = append(problems, d.key+" (invalid duration)")
			continue
		}
		*d.dst = v
	}

	attempts, err := strconv.Atoi(Get("PROVIDER_MAX_ATTEMPTS", "2"))
	if err != nil || attempts < 1 {
		problems = append(problems, "PROVIDER_MAX_ATTEMPTS (must be a positive integer)")
	}
	cfg.ProviderMaxAttempts = attempts

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return cfg, nil
}

// Get returns the environment variable named by key, or fallback when it is
// unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
