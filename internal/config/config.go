// Package config loads dealflow settings from ~/.dealflow/config.yaml and
// DEALFLOW_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/dealflow/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// Config holds daemon and client configuration.
type Config struct {
	Server  ServerConfig     `yaml:"server"`
	Store   StoreConfig      `yaml:"store"`
	Redis   RedisConfig      `yaml:"redis"`
	Sweeper scheduler.Config `yaml:"sweeper"`
	Log     LogConfig        `yaml:"log"`
	Catalog CatalogConfig    `yaml:"catalog"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is sqlite, postgres or memory.
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

// RedisConfig configures change notifications. An empty Addr disables them.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CatalogConfig points at template overrides on disk.
type CatalogConfig struct {
	Dir string `yaml:"dir"`
}

// Dir returns ~/.dealflow, or .dealflow when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dealflow"
	}
	return filepath.Join(home, ".dealflow")
}

// DefaultPath is the config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a configuration for a local single-user daemon.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:    "127.0.0.1:7477",
			RateLimit: 20,
			Burst:     40,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(Dir(), "dealflow.db"),
		},
		Redis:   RedisConfig{Prefix: "dealflow"},
		Sweeper: *scheduler.DefaultConfig(),
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from DEALFLOW_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DEALFLOW_LISTEN":        &c.Server.Listen,
		"DEALFLOW_STORE":         &c.Store.Driver,
		"DEALFLOW_DB":            &c.Store.Path,
		"DEALFLOW_DATABASE_URL":  &c.Store.URL,
		"DEALFLOW_REDIS_ADDR":    &c.Redis.Addr,
		"DEALFLOW_LOG_LEVEL":     &c.Log.Level,
		"DEALFLOW_LOG_FORMAT":    &c.Log.Format,
		"DEALFLOW_TEMPLATES_DIR": &c.Catalog.Dir,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("DEALFLOW_SWEEP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DEALFLOW_SWEEP_INTERVAL: %w", err)
		}
		c.Sweeper.Interval = d
	}
	if v, ok := lookup("DEALFLOW_RATE_LIMIT"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DEALFLOW_RATE_LIMIT: %w", err)
		}
		c.Server.RateLimit = rps
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid store.driver %q, must be: sqlite, postgres, or memory", c.Store.Driver)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval < time.Second {
		return fmt.Errorf("sweeper.interval must be at least 1s")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q, must be: text or json", c.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log.level %q", s)
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
