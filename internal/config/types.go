// Package config provides configuration loading and management for stagegate.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults work out of the box: evidence is read from
// .stagegate/evidence in the working directory and, with no backend configured,
// the fallback baseline is used.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [BackendConfig] locates the remote status endpoint
//   - [EvidenceConfig] selects and locates the evidence store
//
// Configuration priority (highest to lowest):
//  1. Environment variables (STAGEGATE_ prefix, plus BACKEND_URL)
//  2. Config file specified by STAGEGATE_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/stagegate/config.yaml
//     - macOS: ~/Library/Application Support/stagegate/config.yaml
//     - Windows: %APPDATA%\stagegate\config.yaml
//  4. ./stagegate.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"fmt"
	"time"
)

// Evidence store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Backend locates the remote status endpoint used as the baseline.
	Backend BackendConfig `mapstructure:"backend"`

	// Evidence selects the local evidence store.
	Evidence EvidenceConfig `mapstructure:"evidence"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Log configures the zap logger.
	Log LogConfig `mapstructure:"log"`
}

// BackendConfig contains the remote status endpoint settings.
type BackendConfig struct {
	// URL is the backend base URL. Empty disables the remote baseline.
	// Can be set with BACKEND_URL or STAGEGATE_BACKEND_URL.
	URL string `mapstructure:"url"`

	// StatusPath is appended to URL for the status request.
	// Default: "/api/workflow/status"
	StatusPath string `mapstructure:"status_path"`

	// Timeout bounds a single status request.
	// Default: 5s
	Timeout time.Duration `mapstructure:"timeout"`

	// SnapshotPath is a status file used as the baseline when URL is empty.
	// STAGEGATE_SNAPSHOT_PATH overrides it.
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// EvidenceConfig selects and locates the evidence store.
type EvidenceConfig struct {
	// Driver is one of "file", "sqlite" or "memory".
	// Default: "file"
	Driver string `mapstructure:"driver"`

	// Dir is the file store directory. Empty uses .stagegate/evidence.
	// STAGEGATE_EVIDENCE_DIR overrides it.
	Dir string `mapstructure:"dir"`

	// DBPath is the SQLite database file.
	// Default: ".stagegate/evidence.db"
	DBPath string `mapstructure:"db_path"`

	// CatalogPath optionally points at a stage catalog CSV remapping
	// evidence keys and titles.
	CatalogPath string `mapstructure:"catalog_path"`
}

// OutputConfig contains terminal output configuration.
type OutputConfig struct {
	// Format is one of "table", "json" or "yaml".
	// Default: "table"
	Format string `mapstructure:"format"`

	// Color enables lipgloss styling in table output.
	// Default: true
	Color bool `mapstructure:"color"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	// Default: "warn"
	Level string `mapstructure:"level"`

	// Development switches to zap's human-friendly console encoder.
	Development bool `mapstructure:"development"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			StatusPath: "/api/workflow/status",
			Timeout:    5 * time.Second,
		},
		Evidence: EvidenceConfig{
			Driver: DriverFile,
			DBPath: ".stagegate/evidence.db",
		},
		Output: OutputConfig{
			Format: FormatTable,
			Color:  true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	switch c.Evidence.Driver {
	case DriverFile, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("invalid evidence driver: %q", c.Evidence.Driver)
	}

	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("invalid output format: %q", c.Output.Format)
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("invalid backend timeout: %s", c.Backend.Timeout)
	}

	if c.Evidence.Driver == DriverSQLite && c.Evidence.DBPath == "" {
		return fmt.Errorf("evidence db_path is required for the sqlite driver")
	}

	return nil
}
