package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/SAP-F-2025/academic-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/academic-service/internal/utils"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level
	// CORSOrigins lists the allowed browser origins, empty allows any.
	CORSOrigins []string

	DatabaseURL string
	RedisURL    string

	Casdoor CasdoorConfig
	Events  EventsConfig

	// SyncSchedule is a cron expression for the reconciliation sweep. Empty
	// disables scheduled sweeps.
	SyncSchedule string
	// SyncLockTTL bounds how long a crashed sweep can hold the lock.
	SyncLockTTL time.Duration
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string

	// ServiceHost replaces a loopback host in Endpoint when the process runs
	// in a container.
	ServiceHost    string
	MaxConcurrency int64
	ProbeRetries   uint64

	// ResolvedEndpoint is Endpoint after container-aware resolution. It is
	// computed once by LoadConfig.
	ResolvedEndpoint string
}

type EventsConfig struct {
	KafkaBrokers []string
	Topic        string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; the environment may be set externally.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    utils.ParseLevel(getEnv("LOG_LEVEL", "info")),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Casdoor: CasdoorConfig{
			Endpoint:       os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:       os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret:   os.Getenv("CASDOOR_CLIENT_SECRET"),
			Cert:           loadCert(os.Getenv("CASDOOR_CERT")),
			Organization:   getEnv("CASDOOR_ORGANIZATION", "academic"),
			Application:    getEnv("CASDOOR_APPLICATION", "academic-service"),
			ServiceHost:    getEnv("CASDOOR_SERVICE_HOST", "casdoor"),
			MaxConcurrency: int64(getEnvInt("CASDOOR_MAX_CONCURRENCY", 8)),
			ProbeRetries:   uint64(getEnvInt("CASDOOR_PROBE_RETRIES", 2)),
		},
		Events: EventsConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        getEnv("EVENTS_TOPIC", "academic.identity"),
		},
		SyncSchedule: os.Getenv("SYNC_SCHEDULE"),
		SyncLockTTL:  getEnvDuration("SYNC_LOCK_TTL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Casdoor.ResolvedEndpoint = casdoor.ResolveEndpoint(
		cfg.Casdoor.Endpoint,
		cfg.Casdoor.ServiceHost,
		casdoor.DetectRuntime(cfg.Casdoor.Endpoint),
	)

	return cfg, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Casdoor.Endpoint == "" {
		missing = append(missing, "CASDOOR_ENDPOINT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GatewayConfig converts the Casdoor settings to the gateway configuration.
func (c CasdoorConfig) GatewayConfig() casdoor.CasdoorConfig {
	endpoint := c.ResolvedEndpoint
	if endpoint == "" {
		endpoint = c.Endpoint
	}
	return casdoor.CasdoorConfig{
		Endpoint:         endpoint,
		ClientID:         c.ClientID,
		ClientSecret:     c.ClientSecret,
		Certificate:      c.Cert,
		OrganizationName: c.Organization,
		ApplicationName:  c.Application,
		MaxConcurrency:   c.MaxConcurrency,
		ProbeRetries:     c.ProbeRetries,
	}
}

// loadCert accepts either a PEM string or a path to a PEM file.
func loadCert(value string) string {
	if value == "" || strings.Contains(value, "BEGIN") {
		return value
	}
	if data, err := os.ReadFile(value); err == nil {
		return string(data)
	}
	return value
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
