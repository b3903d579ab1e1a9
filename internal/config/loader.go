package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "clickbridge.yaml"

// EnvClientSecret is the environment variable carrying the OAuth client secret.
// It is re-read on SIGHUP through the secrets vault.
const EnvClientSecret = "CLICKBRIDGE_CLICKUP_CLIENT_SECRET"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// Path returns the YAML file Load reads: $CLICKBRIDGE_CONFIG or
// DefaultConfigFile.
func Path() string {
	if p := os.Getenv("CLICKBRIDGE_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigFile
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")
	cfg.ClickUp.APIBaseURL = strings.TrimRight(cfg.ClickUp.APIBaseURL, "/")

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CLICKBRIDGE_PORT")
	setString(&cfg.Server.PublicURL, "CLICKBRIDGE_PUBLIC_URL")
	setString(&cfg.Server.InstallationURL, "CLICKBRIDGE_INSTALLATION_URL")
	setString(&cfg.Server.AdminToken, "CLICKBRIDGE_ADMIN_TOKEN")
	setInt64(&cfg.Server.WebhookBodyMax, "CLICKBRIDGE_WEBHOOK_BODY_MAX")
	setBool(&cfg.Server.BehindProxy, "CLICKBRIDGE_BEHIND_PROXY")

	setString(&cfg.ClickUp.ClientID, "CLICKBRIDGE_CLICKUP_CLIENT_ID")
	setString(&cfg.ClickUp.ClientSecret, EnvClientSecret)
	setString(&cfg.ClickUp.APIBaseURL, "CLICKBRIDGE_CLICKUP_API_URL")
	setString(&cfg.ClickUp.AuthorizeURL, "CLICKBRIDGE_CLICKUP_AUTHORIZE_URL")
	setDuration(&cfg.ClickUp.Timeout, "CLICKBRIDGE_CLICKUP_TIMEOUT")

	setString(&cfg.Installation.ID, "CLICKBRIDGE_INSTALLATION_ID")
	setDuration(&cfg.Installation.SyncInterval, "CLICKBRIDGE_SYNC_INTERVAL")
	setBool(&cfg.Installation.ProvisionCheckExisting, "CLICKBRIDGE_PROVISION_CHECK_EXISTING")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CLICKBRIDGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CLICKBRIDGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CLICKBRIDGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CLICKBRIDGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CLICKBRIDGE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.KVBucket, "CLICKBRIDGE_KV_BUCKET")
	setDuration(&cfg.NATS.KVTTL, "CLICKBRIDGE_KV_TTL")
	setString(&cfg.NATS.EventsSubjectPrefix, "CLICKBRIDGE_EVENTS_SUBJECT_PREFIX")

	setString(&cfg.KV.Backend, "CLICKBRIDGE_KV_BACKEND")
	setInt64(&cfg.KV.MemoryMaxMB, "CLICKBRIDGE_KV_MEMORY_MAX_MB")

	setString(&cfg.Security.EncryptionKey, "CLICKBRIDGE_ENCRYPTION_KEY")

	setString(&cfg.Logging.Level, "CLICKBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CLICKBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CLICKBRIDGE_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "CLICKBRIDGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CLICKBRIDGE_BREAKER_TIMEOUT")
	setDuration(&cfg.Retry.MaxElapsed, "CLICKBRIDGE_RETRY_MAX_ELAPSED")
	setFloat64(&cfg.Rate.RequestsPerSecond, "CLICKBRIDGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CLICKBRIDGE_RATE_BURST")

	setBool(&cfg.OTEL.Enabled, "CLICKBRIDGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "CLICKBRIDGE_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.PublicURL == "" {
		return errors.New("server.public_url is required")
	}
	if u, err := url.Parse(cfg.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.public_url %q must be an absolute URL", cfg.Server.PublicURL)
	}
	if cfg.Installation.ID == "" {
		return errors.New("installation.id is required")
	}
	if cfg.ClickUp.APIBaseURL == "" {
		return errors.New("clickup.api_base_url is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	switch cfg.KV.Backend {
	case "nats":
	case "memory":
		if cfg.KV.MemoryMaxMB < 1 {
			return errors.New("kv.memory_max_mb must be >= 1")
		}
	default:
		return fmt.Errorf("kv.backend %q must be nats or memory", cfg.KV.Backend)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.RequestsPerSecond < 0 {
		return errors.New("rate.requests_per_second must be >= 0")
	}
	if cfg.Rate.Enabled() && cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Server.WebhookBodyMax < 1 {
		return errors.New("server.webhook_body_max must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
