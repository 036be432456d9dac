// Package config holds the YAML-backed runtime and balance configuration.
// Loaders fall back to defaults when the file is missing, so a bare binary
// runs without any config on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Simulation holds the runtime configuration for the simulation process.
type Simulation struct {
	// Tick pacing. All game time is tick-counted; this only paces the
	// wall-clock loop.
	TickMillis int `yaml:"tick_millis"`

	// Seed drives the single RNG behind every chance roll. Same seed, same
	// spawn order, same run.
	Seed uint64 `yaml:"seed"`

	// Snapshot persistence
	SnapshotEvery time.Duration `yaml:"snapshot_every"` // autosave interval, 0 disables
	SnapshotDir   string        `yaml:"snapshot_dir"`   // file store root, "" disables
	UseDatabase   bool          `yaml:"use_database"`   // also persist snapshots to Postgres

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Content sources. Both empty means the builtin pack.
	ContentLua    string `yaml:"content_lua"`    // Lua pack entry script
	ContentSQLite string `yaml:"content_sqlite"` // SQLite content database

	// Logging
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultSimulation returns Simulation config with sensible defaults.
func DefaultSimulation() Simulation {
	return Simulation{
		TickMillis:    100,
		Seed:          1,
		SnapshotEvery: time.Minute,
		SnapshotDir:   "snapshots",
		UseDatabase:   false,
		LogLevel:      "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "simcore",
			Password: "simcore",
			DBName:   "simcore",
			SSLMode:  "disable",
		},
	}
}

// LoadSimulation loads simulation config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadSimulation(path string) (Simulation, error) {
	cfg := DefaultSimulation()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.TickMillis <= 0 {
		return cfg, fmt.Errorf("config %s: tick_millis must be positive", path)
	}
	return cfg, nil
}
