// Package config loads and validates application configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// MigrateOnStart applies pending migrations before serving. Defaults to true.
	MigrateOnStart bool

	// MaxTripDistanceKm is the per-trip plausibility bound. Defaults to 2000.
	MaxTripDistanceKm float64

	// KmPerMil converts kilometres to Swedish mil. Defaults to 10.
	KmPerMil float64

	// ReportLocation decides calendar years and days in reports and exports.
	// Defaults to Europe/Stockholm.
	ReportLocation *time.Location

	HomeAssistant HomeAssistant
}

// HomeAssistant holds the server-wide defaults for the odometer integration.
// Values saved through the settings API take precedence.
type HomeAssistant struct {
	BaseURL        string
	Token          string
	OdometerEntity string
	ForceDomain    string
	ForceService   string
	ForceData      map[string]any

	// PollTimeout bounds one state read. Defaults to 8s.
	PollTimeout time.Duration
	// ForceWait is the pause between a forced update and the poll. Defaults to 15s.
	ForceWait time.Duration
	// ForceMinInterval is the minimum spacing of forced updates. Defaults to 2m.
	ForceMinInterval time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set or that
// could not be parsed.
func Load() (Config, error) {
	p := &parser{}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSOrigins:       splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		MaxBodyBytes:      p.int64("MAX_BODY_BYTES", 1<<20),
		MigrateOnStart:    p.bool("MIGRATE_ON_START", true),
		MaxTripDistanceKm: p.positiveFloat("MAX_TRIP_DISTANCE_KM", 2000),
		KmPerMil:          p.positiveFloat("KM_PER_MIL", 10),
		ReportLocation:    p.location("REPORT_TIMEZONE", "Europe/Stockholm"),
		HomeAssistant: HomeAssistant{
			BaseURL:          strings.TrimRight(os.Getenv("HA_BASE_URL"), "/"),
			Token:            os.Getenv("HA_TOKEN"),
			OdometerEntity:   os.Getenv("HA_ODOMETER_ENTITY"),
			ForceDomain:      getEnv("HA_FORCE_DOMAIN", "kia_uvo"),
			ForceService:     getEnv("HA_FORCE_SERVICE", "force_update"),
			ForceData:        p.jsonObject("HA_FORCE_DATA"),
			PollTimeout:      p.duration("HA_POLL_TIMEOUT", 8*time.Second),
			ForceWait:        p.duration("HA_FORCE_WAIT", 15*time.Second),
			ForceMinInterval: p.duration("HA_FORCE_MIN_INTERVAL", 2*time.Minute),
		},
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(p.invalid, "; "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
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

// parser reads typed variables and collects every parse failure so Load can
// report them all at once.
type parser struct {
	invalid []string
}

func (p *parser) fail(key, v string, err error) {
	p.invalid = append(p.invalid, fmt.Sprintf("%s=%q: %v", key, v, err))
}

func (p *parser) int64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err == nil && n <= 0 {
		err = fmt.Errorf("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) positiveFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err == nil && !(f > 0) {
		err = fmt.Errorf("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err == nil && d <= 0 {
		err = fmt.Errorf("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) location(key, fallback string) *time.Location {
	name := getEnv(key, fallback)
	loc, err := time.LoadLocation(name)
	if err != nil {
		p.fail(key, name, err)
		return time.UTC
	}
	return loc
}

func (p *parser) jsonObject(key string) map[string]any {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		p.fail(key, v, err)
		return nil
	}
	return out
}
