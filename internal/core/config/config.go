package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PULSE_"

// Config represents the top-level application config.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Redis     RedisConfig     `koanf:"redis"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Retention RetentionConfig `koanf:"retention"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type StorageConfig struct {
	Type string `koanf:"type"` // memory | postgres
}

type AuthConfig struct {
	AppID     string `koanf:"app_id"`
	JWTSecret string `koanf:"jwt_secret"`
	AdminRole string `koanf:"admin_role"`
}

type RateLimitConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Backend           string        `koanf:"backend"` // memory | redis
	IngestionWindow   time.Duration `koanf:"ingestion_window"`
	IngestionLimit    int           `koanf:"ingestion_limit"`
	GeneralWindow     time.Duration `koanf:"general_window"`
	GeneralGuestLimit int           `koanf:"general_guest_limit"`
	GeneralAuthLimit  int           `koanf:"general_auth_limit"`
	SweepInterval     time.Duration `koanf:"sweep_interval"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type IngestionConfig struct {
	MaxBatchSize    int           `koanf:"max_batch_size"`
	QueueSize       int           `koanf:"queue_size"`
	Workers         int           `koanf:"workers"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	DrainTimeout    time.Duration `koanf:"drain_timeout"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

type RetentionConfig struct {
	Enabled   bool          `koanf:"enabled"`
	TTL       time.Duration `koanf:"ttl"`
	Interval  time.Duration `koanf:"interval"`
	BatchSize int           `koanf:"batch_size"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres storage")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	default:
		return fmt.Errorf("unsupported storage.type %q (must be memory or postgres)", c.Storage.Type)
	}

	if strings.TrimSpace(c.Auth.AppID) == "" {
		return fmt.Errorf("auth.app_id is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if strings.TrimSpace(c.Auth.AdminRole) == "" {
		return fmt.Errorf("auth.admin_role is required")
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if strings.TrimSpace(c.Redis.Addr) == "" {
				return fmt.Errorf("redis.addr is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("unsupported ratelimit.backend %q (must be memory or redis)", c.RateLimit.Backend)
		}
		if c.RateLimit.IngestionWindow <= 0 || c.RateLimit.GeneralWindow <= 0 {
			return fmt.Errorf("ratelimit windows must be > 0")
		}
		if c.RateLimit.IngestionLimit <= 0 || c.RateLimit.GeneralGuestLimit <= 0 || c.RateLimit.GeneralAuthLimit <= 0 {
			return fmt.Errorf("ratelimit limits must be > 0")
		}
		if c.RateLimit.SweepInterval <= 0 {
			return fmt.Errorf("ratelimit.sweep_interval must be > 0")
		}
	}

	if c.Ingestion.MaxBatchSize <= 0 {
		return fmt.Errorf("ingestion.max_batch_size must be > 0")
	}
	if c.Ingestion.QueueSize <= 0 {
		return fmt.Errorf("ingestion.queue_size must be > 0")
	}
	if c.Ingestion.Workers <= 0 {
		return fmt.Errorf("ingestion.workers must be > 0")
	}
	if c.Ingestion.WriteTimeout <= 0 || c.Ingestion.DrainTimeout <= 0 {
		return fmt.Errorf("ingestion timeouts must be > 0")
	}
	if c.Ingestion.BreakerFailures <= 0 {
		return fmt.Errorf("ingestion.breaker_failures must be > 0")
	}

	if c.Retention.Enabled {
		if c.Retention.TTL <= 0 {
			return fmt.Errorf("retention.ttl must be > 0")
		}
		if c.Retention.Interval <= 0 {
			return fmt.Errorf("retention.interval must be > 0")
		}
		if c.Retention.BatchSize <= 0 {
			return fmt.Errorf("retention.batch_size must be > 0")
		}
	}

	return nil
}

// Load parses config from defaults, an optional YAML file and PULSE_* env
// vars (double underscore nests), then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                   8080,
		"server.host":                   "0.0.0.0",
		"server.max_body_size_mb":       1,
		"server.mode":                   "release",
		"database.dsn":                  "",
		"database.max_open_conns":       25,
		"database.max_idle_conns":       25,
		"database.auto_migrate":         true,
		"storage.type":                  "postgres",
		"auth.app_id":                   "",
		"auth.jwt_secret":               "",
		"auth.admin_role":               "admin",
		"ratelimit.enabled":             true,
		"ratelimit.backend":             "memory",
		"ratelimit.ingestion_window":    "60s",
		"ratelimit.ingestion_limit":     100,
		"ratelimit.general_window":      "15m",
		"ratelimit.general_guest_limit": 100,
		"ratelimit.general_auth_limit":  500,
		"ratelimit.sweep_interval":      "1m",
		"redis.addr":                    "localhost:6379",
		"redis.password":                "",
		"redis.db":                      0,
		"redis.key_prefix":              "pulse:rl:",
		"ingestion.max_batch_size":      100,
		"ingestion.queue_size":          1024,
		"ingestion.workers":             4,
		"ingestion.write_timeout":       "5s",
		"ingestion.drain_timeout":       "10s",
		"ingestion.breaker_failures":    5,
		"ingestion.breaker_cooldown":    "30s",
		"retention.enabled":             true,
		"retention.ttl":                 "2160h",
		"retention.interval":            "1h",
		"retention.batch_size":          5000,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
