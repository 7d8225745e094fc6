// Package config loads insightdeck configuration. Sources, lowest to highest
// precedence: built-in defaults, the YAML config file, environment variables.
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Storage backends for persisted client state.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// GoogleConfig enables Google sign-in. An empty ClientID disables it.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SandboxConfig configures the local sandbox API server.
type SandboxConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

// Config is the complete configuration.
type Config struct {
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
	Google  GoogleConfig  `yaml:"google"`

	// Storage selects where token, user and active file are kept.
	Storage     string `yaml:"storage"`
	StateDir    string `yaml:"state_dir"`
	DatabaseURL string `yaml:"database_url"`
	// Namespace separates clients sharing one postgres database.
	Namespace string `yaml:"namespace"`

	LogLevel string        `yaml:"log_level"`
	Sandbox  SandboxConfig `yaml:"sandbox"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:    "http://localhost:8000/api/v1",
		Timeout:   30 * time.Second,
		Storage:   StorageSQLite,
		StateDir:  defaultStateDir(),
		Namespace: "default",
		LogLevel:  "warn",
		Sandbox:   SandboxConfig{Addr: "127.0.0.1:8000"},
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".insightdeck"
	}
	return filepath.Join(home, ".local", "share", "insightdeck")
}

// DefaultPath returns ~/.config/insightdeck/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "insightdeck", "config.yaml")
}

// Load reads configuration. An empty path uses DefaultPath, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("invalid config file %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSIGHTDECK_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("INSIGHTDECK_GOOGLE_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("INSIGHTDECK_GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := os.Getenv("INSIGHTDECK_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("INSIGHTDECK_STORAGE"); v != "" {
		cfg.Storage = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("INSIGHTDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("INSIGHTDECK_SANDBOX_SECRET"); v != "" {
		cfg.Sandbox.Secret = v
	}
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageSQLite, StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("storage postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown storage %q (want sqlite, postgres or memory)", c.Storage)
	}
	if c.APIURL == "" {
		return errors.New("api_url is required")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

// StatePath is the sqlite database file.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.db")
}

// Logger builds a console logger at the configured level, writing to stderr.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
