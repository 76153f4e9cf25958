// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Logging LoggingConfig `toml:"logging"`
	Store   StoreConfig   `toml:"store"`
	Engine  EngineConfig  `toml:"engine"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// StoreConfig configures the forecast-run archive.
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// EngineConfig carries the engine defaults the daemon starts with.
type EngineConfig struct {
	DefaultHorizonWeeks int  `toml:"default_horizon_weeks"`
	UseEnsemble         bool `toml:"use_ensemble"`
	EnsembleMinWeeks    int  `toml:"ensemble_min_weeks"`
	Workers             int  `toml:"workers"`
}

// DefaultConfig returns the daemon defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{Level: "info"},
		Store: StoreConfig{
			Enabled: true,
			Path:    defaultStorePath(),
		},
		Engine: EngineConfig{
			DefaultHorizonWeeks: 12,
			UseEnsemble:         false,
			EnsembleMinWeeks:    16,
			Workers:             4,
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fincast.db"
	}
	return filepath.Join(home, ".fincast", "fincast.db")
}

// Load reads the config file at path, layered over the defaults. A missing
// file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as TOML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Engine.DefaultHorizonWeeks <= 0 {
		return fmt.Errorf("engine.default_horizon_weeks must be positive, got %d", c.Engine.DefaultHorizonWeeks)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return errors.New("store.path required when the store is enabled")
	}
	return nil
}

// ListenAddr is the host:port the API binds.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
