// Package config loads all vistoria configuration from environment
// variables, with .env file support for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all vistoria configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Provider ProviderConfig
	Feed     FeedConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type DatabaseConfig struct {
	Path string
}

// ProviderConfig configures the external content-generation provider.
type ProviderConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

type FeedConfig struct {
	PageSize int // pins requested per fetch
}

type NotifyConfig struct {
	Enabled  bool
	Interval time.Duration // simulator tick cadence
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8790,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Provider: ProviderConfig{
			Model:    "gemini-2.0-flash",
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
		},
		Feed: FeedConfig{
			PageSize: 12,
		},
		Notify: NotifyConfig{
			Enabled:  true,
			Interval: 12 * time.Second,
		},
	}
}

// Load builds a Config from the environment on top of the defaults.
// A .env file is loaded first if present; its absence is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	cfg.Server.Bind = getEnv("VISTORIA_BIND", cfg.Server.Bind)
	if v := os.Getenv("VISTORIA_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid VISTORIA_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	cfg.Database.Path = getEnv("VISTORIA_DB_PATH", cfg.Database.Path)

	cfg.Provider.APIKey = getEnv("GEMINI_API_KEY", cfg.Provider.APIKey)
	cfg.Provider.Model = getEnv("GEMINI_MODEL", cfg.Provider.Model)
	cfg.Provider.Endpoint = getEnv("GEMINI_ENDPOINT", cfg.Provider.Endpoint)

	if v := os.Getenv("VISTORIA_PAGE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return cfg, fmt.Errorf("invalid VISTORIA_PAGE_SIZE %q", v)
		}
		cfg.Feed.PageSize = size
	}

	if v := os.Getenv("VISTORIA_NOTIFY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid VISTORIA_NOTIFY_ENABLED: %w", err)
		}
		cfg.Notify.Enabled = enabled
	}
	if v := os.Getenv("VISTORIA_NOTIFY_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid VISTORIA_NOTIFY_INTERVAL: %w", err)
		}
		cfg.Notify.Interval = interval
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
