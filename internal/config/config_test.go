package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabrefresh/internal/refresh"
	"github.com/lotas/tabrefresh/internal/server"
	"github.com/lotas/tabrefresh/internal/targets"
	"github.com/lotas/tabrefresh/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBackend, EnvPort, EnvDataDir} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetBackend() != types.BackendBridge {
		t.Errorf("backend = %q, want bridge", cfg.GetBackend())
	}
	if cfg.GetPort() != server.DefaultPort {
		t.Errorf("port = %d, want %d", cfg.GetPort(), server.DefaultPort)
	}
	if cfg.GetInterval() != refresh.DefaultInterval {
		t.Errorf("interval = %v", cfg.GetInterval())
	}
	if cfg.GetGrace() != refresh.DefaultGrace {
		t.Errorf("grace = %v", cfg.GetGrace())
	}
	if cfg.GetRequestTimeout() != DefaultRequestTimeout {
		t.Errorf("request timeout = %v", cfg.GetRequestTimeout())
	}
	if cfg.GetHeadless() {
		t.Error("headless should default to false")
	}
	if cfg.GetDefaultTarget() != targets.DefaultTarget {
		t.Errorf("default target = %+v", cfg.GetDefaultTarget())
	}
}

func TestLoadFileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
backend = "playwright"
port = 20000
interval = "2s"
grace = "250ms"
request_timeout = "1s"
headless = true
data_dir = "/tmp/tabrefresh-data"
default_url = "https://example.com/status"
default_name = "Status"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetBackend() != types.BackendPlaywright {
		t.Errorf("backend = %q", cfg.GetBackend())
	}
	if cfg.GetPort() != 20000 {
		t.Errorf("port = %d", cfg.GetPort())
	}
	if cfg.GetInterval() != 2*time.Second {
		t.Errorf("interval = %v", cfg.GetInterval())
	}
	if cfg.GetGrace() != 250*time.Millisecond {
		t.Errorf("grace = %v", cfg.GetGrace())
	}
	if cfg.GetRequestTimeout() != time.Second {
		t.Errorf("request timeout = %v", cfg.GetRequestTimeout())
	}
	if !cfg.GetHeadless() {
		t.Error("headless should be true")
	}
	dir, err := cfg.GetDataDir()
	if err != nil || dir != "/tmp/tabrefresh-data" {
		t.Errorf("data dir = %q, %v", dir, err)
	}
	def := cfg.GetDefaultTarget()
	if def.URL != "https://example.com/status" || def.DisplayName != "Status" || !def.Protected {
		t.Errorf("default target = %+v", def)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
backend = "playwright"
port = 20000
data_dir = "/from/file"
`)
	t.Setenv(EnvBackend, "bridge")
	t.Setenv(EnvPort, "21000")
	t.Setenv(EnvDataDir, "/from/env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetBackend() != types.BackendBridge {
		t.Errorf("backend = %q, want bridge", cfg.GetBackend())
	}
	if cfg.GetPort() != 21000 {
		t.Errorf("port = %d, want 21000", cfg.GetPort())
	}
	if dir, _ := cfg.GetDataDir(); dir != "/from/env" {
		t.Errorf("data dir = %q", dir)
	}
}

func TestFlagOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "21000")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.SetPort(22000)
	cfg.SetBackend("playwright")
	if cfg.GetPort() != 22000 || cfg.GetBackend() != types.BackendPlaywright {
		t.Errorf("got port %d backend %q", cfg.GetPort(), cfg.GetBackend())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  string
		want string
	}{
		{"bad backend", `backend = "chrome"`, "", "unknown backend"},
		{"bad port", `port = 70000`, "", "out of range"},
		{"bad interval", `interval = "soon"`, "", "interval"},
		{"zero interval", `interval = "0s"`, "", "must be positive"},
		{"bad toml", `backend = `, "", "parse"},
		{"bad env port", ``, "abc", "invalid port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.env != "" {
				t.Setenv(EnvPort, tt.env)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/tabrefresh.toml")
	p, err := Path()
	if err != nil || p != "/etc/tabrefresh.toml" {
		t.Errorf("Path = %q, %v", p, err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := expandHome("~/data")
	if err != nil || got != filepath.Join(home, "data") {
		t.Errorf("expandHome = %q, %v", got, err)
	}
	if got, _ := expandHome("/abs"); got != "/abs" {
		t.Errorf("expandHome(/abs) = %q", got)
	}
}

func TestNilConfigDefaults(t *testing.T) {
	var c *Config
	if c.GetPort() != server.DefaultPort || c.GetBackend() != types.BackendBridge {
		t.Error("nil config should return defaults")
	}
}
