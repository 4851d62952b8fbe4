// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DriverMemory selects the in-process stores. Nothing survives a restart.
const DriverMemory = "memory"

type Config struct {
	App struct {
		Port    int           `envconfig:"PORT" default:"8080"`
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"15s"`
		Origins []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	}

	DB struct {
		Driver string `envconfig:"DB_DRIVER" default:"sqlite3"`
		DSN    string `envconfig:"DB_DSN" default:"revenue.db"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Pretty bool   `envconfig:"LOG_PRETTY" default:"true"`
	}

	Scheduler struct {
		Enabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
		Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"1h"`
	}

	Engine struct {
		Workers int `envconfig:"ENGINE_WORKERS" default:"4"`
	}
}

// Load reads an optional .env file in the working directory, then the
// environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite3", "pgx", DriverMemory:
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3, pgx or memory, got %q", c.DB.Driver)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("ENGINE_WORKERS must be at least 1, got %d", c.Engine.Workers)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}
