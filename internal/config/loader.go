package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appName        = "stagegate"
	configFileName = "config.yaml"
	envPrefix      = "STAGEGATE"
)

// Loader loads configuration using Viper.
//
// Create instances using [NewLoader]. Each Loader owns its own viper instance,
// so loaders never share state.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new [Loader] with defaults and environment bindings.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("backend.url", envPrefix+"_BACKEND_URL", "BACKEND_URL")

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.url", cfg.Backend.URL)
	v.SetDefault("backend.status_path", cfg.Backend.StatusPath)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)
	v.SetDefault("backend.snapshot_path", cfg.Backend.SnapshotPath)
	v.SetDefault("evidence.driver", cfg.Evidence.Driver)
	v.SetDefault("evidence.dir", cfg.Evidence.Dir)
	v.SetDefault("evidence.db_path", cfg.Evidence.DBPath)
	v.SetDefault("evidence.catalog_path", cfg.Evidence.CatalogPath)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.color", cfg.Output.Color)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.development", cfg.Log.Development)
}

// Load discovers and loads configuration following the package priority order.
//
// A missing config file is not an error; defaults and environment variables
// still apply. A config file that exists but cannot be parsed is an error.
func (l *Loader) Load() (*Config, error) {
	path := discoverConfigFile()
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadFromFile loads configuration from an explicit file. The format is
// derived from the file extension.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// discoverConfigFile returns the highest-priority config file that exists,
// or an empty string.
func discoverConfigFile() string {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	var candidates []string
	if p, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, appName+".yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ConfigDir returns the platform-standard stagegate config directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the path of the user-level config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// MustLoad loads configuration and panics on error.
// Intended for main packages and tests where a bad config is fatal.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// EnsureConfigDir creates the user config directory if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return nil
}
