// Package config loads agentbridge's configuration from a YAML file and
// layers environment-variable overrides on top, following the teacher's
// LoadTeamsConfig pattern (internal/agents/config.go) plus the caarlos0/env
// overlay used for secrets that should never live in a checked-in file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full agentbridge runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Auth     AuthConfig     `yaml:"auth"`
	NATS     NATSConfig     `yaml:"nats"`
	Cache    CacheConfig    `yaml:"cache"`
	Queue    QueueConfig    `yaml:"queue"`
	LogLevel string         `yaml:"log_level" env:"AGENTBRIDGE_LOG_LEVEL"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"AGENTBRIDGE_HTTP_ADDR"`
}

type StoreConfig struct {
	DSN               string `yaml:"dsn" env:"AGENTBRIDGE_STORE_DSN"`
	MigrationsSubpath string `yaml:"migrations_subpath"`
}

type AuthConfig struct {
	OIDCIssuer        string        `yaml:"oidc_issuer" env:"AGENTBRIDGE_OIDC_ISSUER"`
	OIDCAudience      string        `yaml:"oidc_audience" env:"AGENTBRIDGE_OIDC_AUDIENCE"`
	HMACClockSkew     time.Duration `yaml:"hmac_clock_skew"`
	BearerCacheTTL    time.Duration `yaml:"bearer_cache_ttl"`
	AllowAnonymous    bool          `yaml:"allow_anonymous"`
	AgentSecretPrefix string        `yaml:"agent_secret_prefix"`
}

type NATSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" env:"AGENTBRIDGE_NATS_URL"`
	Embedded bool   `yaml:"embedded"`
}

type CacheConfig struct {
	Backend  string `yaml:"backend"` // "memory" or "redis"
	RedisURL string `yaml:"redis_url" env:"AGENTBRIDGE_REDIS_URL"`
}

type QueueConfig struct {
	LongPollMinSeconds int `yaml:"long_poll_min_seconds"`
	LongPollMaxSeconds int `yaml:"long_poll_max_seconds"`
	DispatchTimeoutSec int `yaml:"dispatch_timeout_seconds"`
	ReaperIntervalSec  int `yaml:"reaper_interval_seconds"`
}

// defaults mirrors the conservative bounds set out in spec.md §5.
func defaults() Config {
	return Config{
		HTTP:  HTTPConfig{ListenAddr: ":8443"},
		Store: StoreConfig{DSN: "agentbridge.db", MigrationsSubpath: "migrations"},
		Auth: AuthConfig{
			HMACClockSkew:     5 * time.Minute,
			BearerCacheTTL:    60 * time.Second,
			AgentSecretPrefix: "agentbridge/agents",
		},
		NATS:  NATSConfig{Enabled: false, Embedded: true},
		Cache: CacheConfig{Backend: "memory"},
		Queue: QueueConfig{
			LongPollMinSeconds: 1,
			LongPollMaxSeconds: 120,
			DispatchTimeoutSec: 60,
			ReaperIntervalSec:  15,
		},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty and present) as YAML over the defaults,
// then applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	return &cfg, nil
}
