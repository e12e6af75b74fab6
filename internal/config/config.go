package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/lotas/tabrefresh/internal/refresh"
	"github.com/lotas/tabrefresh/internal/server"
	"github.com/lotas/tabrefresh/internal/storage"
	"github.com/lotas/tabrefresh/internal/targets"
	"github.com/lotas/tabrefresh/internal/types"
)

// Environment variables that override the config file.
const (
	EnvConfig  = "TABREFRESH_CONFIG"
	EnvBackend = "TABREFRESH_BACKEND"
	EnvPort    = "TABREFRESH_PORT"
	EnvDataDir = "TABREFRESH_DATA_DIR"
)

// DefaultRequestTimeout bounds a single bridge request.
const DefaultRequestTimeout = 3 * time.Second

// Config mirrors config.toml. Unset fields fall back to defaults through
// the Get methods.
type Config struct {
	Backend        *string `toml:"backend,omitempty"`
	Port           *int    `toml:"port,omitempty"`
	Interval       *string `toml:"interval,omitempty"`
	Grace          *string `toml:"grace,omitempty"`
	RequestTimeout *string `toml:"request_timeout,omitempty"`
	Headless       *bool   `toml:"headless,omitempty"`
	DataDir        *string `toml:"data_dir,omitempty"`
	DefaultURL     *string `toml:"default_url,omitempty"`
	DefaultName    *string `toml:"default_name,omitempty"`
}

// Path returns the config file location, honouring TABREFRESH_CONFIG.
func Path() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tabrefresh", "config.toml"), nil
}

// LoadDotEnv loads .env from the working directory if present.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the config file at path and applies environment overrides.
// A missing file yields an empty config.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = &v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = &port
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = &v
	}
	return nil
}

// Validate checks values that cannot fall back silently.
func (c *Config) Validate() error {
	switch types.Backend(c.GetBackendName()) {
	case types.BackendBridge, types.BackendPlaywright:
	default:
		return fmt.Errorf("unknown backend %q (want bridge or playwright)", c.GetBackendName())
	}
	if p := c.GetPort(); p < 1 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}
	for name, v := range map[string]*string{
		"interval":        c.Interval,
		"grace":           c.Grace,
		"request_timeout": c.RequestTimeout,
	} {
		if v == nil {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 && name != "grace" {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// SetBackend overrides the backend, e.g. from a command-line flag.
func (c *Config) SetBackend(b string) {
	c.Backend = &b
}

// SetPort overrides the bridge port.
func (c *Config) SetPort(p int) {
	c.Port = &p
}

func (c *Config) GetBackendName() string {
	if c == nil || c.Backend == nil {
		return string(types.BackendBridge)
	}
	return strings.ToLower(strings.TrimSpace(*c.Backend))
}

func (c *Config) GetBackend() types.Backend {
	return types.Backend(c.GetBackendName())
}

func (c *Config) GetPort() int {
	if c == nil || c.Port == nil {
		return server.DefaultPort
	}
	return *c.Port
}

func (c *Config) GetInterval() time.Duration {
	if c == nil {
		return refresh.DefaultInterval
	}
	return duration(c.Interval, refresh.DefaultInterval)
}

func (c *Config) GetGrace() time.Duration {
	if c == nil {
		return refresh.DefaultGrace
	}
	return duration(c.Grace, refresh.DefaultGrace)
}

func (c *Config) GetRequestTimeout() time.Duration {
	if c == nil {
		return DefaultRequestTimeout
	}
	return duration(c.RequestTimeout, DefaultRequestTimeout)
}

func (c *Config) GetHeadless() bool {
	if c == nil || c.Headless == nil {
		return false
	}
	return *c.Headless
}

// GetDataDir returns the data directory with a leading ~ expanded.
func (c *Config) GetDataDir() (string, error) {
	if c == nil || c.DataDir == nil || *c.DataDir == "" {
		return storage.DefaultDataDir()
	}
	return expandHome(*c.DataDir)
}

// GetDefaultTarget returns the protected target seeded on first run.
func (c *Config) GetDefaultTarget() types.Target {
	t := targets.DefaultTarget
	if c == nil {
		return t
	}
	if c.DefaultURL != nil && *c.DefaultURL != "" {
		t.URL = *c.DefaultURL
	}
	if c.DefaultName != nil && *c.DefaultName != "" {
		t.DisplayName = *c.DefaultName
	}
	return t
}

func duration(v *string, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
