// Package config loads service configuration from a YAML file overlaid with
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/reports"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment overrides, e.g. IP_SERVER__PORT
// overrides server.port.
const envPrefix = "IP_"

// Config is the root service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	Auth          AuthConfig          `koanf:"auth"`
	Notifications NotificationsConfig `koanf:"notifications"`
	SLA           SLAConfig           `koanf:"sla"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	MetricsPort     int           `koanf:"metrics_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// NotificationsConfig holds the outbound notification settings.
type NotificationsConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"` // deep-link base, e.g. https://pulse.example.com
	Webhook WebhookConfig `koanf:"webhook"`
	Pager   PagerConfig   `koanf:"pager"`
}

// WebhookConfig holds chat webhook settings.
type WebhookConfig struct {
	URL       string        `koanf:"url"`
	Username  string        `koanf:"username"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
}

// PagerConfig holds paging service settings.
type PagerConfig struct {
	Endpoint   string        `koanf:"endpoint"`
	RoutingKey string        `koanf:"routing_key"`
	Timeout    time.Duration `koanf:"timeout"`
	RateLimit  float64       `koanf:"rate_limit"`
}

// SLAConfig holds per-severity resolve targets.
// Zero values fall back to the built-in defaults.
type SLAConfig struct {
	Sev1 time.Duration `koanf:"sev1"`
	Sev2 time.Duration `koanf:"sev2"`
	Sev3 time.Duration `koanf:"sev3"`
	Sev4 time.Duration `koanf:"sev4"`
}

// Targets merges the configured values over the defaults.
func (s SLAConfig) Targets() reports.SLATargets {
	targets := reports.DefaultSLATargets()
	if s.Sev1 > 0 {
		targets[domain.SeveritySev1] = s.Sev1
	}
	if s.Sev2 > 0 {
		targets[domain.SeveritySev2] = s.Sev2
	}
	if s.Sev3 > 0 {
		targets[domain.SeveritySev3] = s.Sev3
	}
	if s.Sev4 > 0 {
		targets[domain.SeveritySev4] = s.Sev4
	}
	return targets
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the optional YAML file at path, then applies
// IP_* environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Double underscore separates nesting levels so single underscores
	// survive in key names: IP_DATABASE__MAX_OPEN_CONNS -> database.max_open_conns.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
