package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

type Config struct {
	// Server
	Port   string // default: 8080
	AppEnv string // "production" hides error details

	// Database
	PostgresDSN string

	// Cache
	RedisAddr string

	// Providers
	CatalogPath        string // empty uses the embedded catalog
	DefaultProvider    string // default: qwen
	DefaultModel       string // default: qwen-plus
	ProviderTimeout    time.Duration
	ProviderMaxRetries uint

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Rate Limiting
	RateLimitRPM int64 // requests per minute per user, default: 30

	RunSeed bool

	apiKeys map[string]string // provider id -> key, filled by LoadProviders
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		AppEnv:               getEnv("APP_ENV", "development"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		CatalogPath:          os.Getenv("CATALOG_PATH"),
		DefaultProvider:      getEnv("DEFAULT_PROVIDER", "qwen"),
		DefaultModel:         getEnv("DEFAULT_MODEL", "qwen-plus"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		RunSeed:              os.Getenv("RUN_SEED") == "true",
		apiKeys:              make(map[string]string),
	}

	timeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "60s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %q", os.Getenv("PROVIDER_TIMEOUT"))
	}
	cfg.ProviderTimeout = timeout

	retries, err := strconv.ParseUint(getEnv("PROVIDER_MAX_RETRIES", "0"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_RETRIES: %w", err)
	}
	cfg.ProviderMaxRetries = uint(retries)

	rpm, err := strconv.ParseInt(getEnv("RATE_LIMIT_RPM", "30"), 10, 64)
	if err != nil || rpm <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPM: %q", os.Getenv("RATE_LIMIT_RPM"))
	}
	cfg.RateLimitRPM = rpm

	// Validation
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}

	return cfg, nil
}

// LoadProviders reads <PREFIX>_API_KEY, <PREFIX>_BASE_URL, <PREFIX>_TEMPERATURE
// and <PREFIX>_MAX_TOKENS for every catalog provider, where PREFIX is the
// provider's credential_env. Keys are kept for APIKey; the rest is returned
// as registry settings.
func (c *Config) LoadProviders(cat *registry.Catalog) (map[string]registry.ProviderSettings, error) {
	if c.apiKeys == nil {
		c.apiKeys = make(map[string]string)
	}
	settings := make(map[string]registry.ProviderSettings, len(cat.Providers))

	for _, p := range cat.Providers {
		prefix := p.CredentialEnv
		if prefix == "" {
			prefix = strings.ToUpper(p.ID)
		}

		if key := strings.TrimSpace(os.Getenv(prefix + "_API_KEY")); key != "" {
			c.apiKeys[p.ID] = key
		}

		var s registry.ProviderSettings
		s.BaseURL = os.Getenv(prefix + "_BASE_URL")

		if v := os.Getenv(prefix + "_TEMPERATURE"); v != "" {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil || t < 0 || t > 2 {
				return nil, fmt.Errorf("invalid %s_TEMPERATURE: %q", prefix, v)
			}
			s.Temperature = &t
		}
		if v := os.Getenv(prefix + "_MAX_TOKENS"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid %s_MAX_TOKENS: %q", prefix, v)
			}
			s.MaxTokens = n
		}

		settings[p.ID] = s
	}

	return settings, nil
}

// APIKey implements registry.Credentials.
func (c *Config) APIKey(providerID string) string {
	return c.apiKeys[providerID]
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
