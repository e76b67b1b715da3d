// Package config defines the engine's configuration and provides loading
// from a TOML file with AUCTIOND_* environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by AUCTIOND_* environment
// variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds the HTTP listener parameters.
type ServerConfig struct {
	Port            string        `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters. An empty URL
// selects the in-memory store.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// RedisConfig holds Redis connection parameters. An empty URL disables
// the read-through cache and the cross-instance broadcaster.
type RedisConfig struct {
	URL      string        `toml:"url"`
	CacheTTL time.Duration `toml:"cache_ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port must not be empty")
	}
	if c.Redis.CacheTTL < 0 {
		return fmt.Errorf("config: redis.cache_ttl must not be negative")
	}
	// A bare TOML integer decodes as nanoseconds ("15" → 15ns, not 15s);
	// a server timeout that small can only be that mistake.
	timeouts := map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	}
	for name, d := range timeouts {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
		if d > 0 && d < time.Millisecond {
			return fmt.Errorf("config: %s is %v; use a duration string like \"15s\"", name, d)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
