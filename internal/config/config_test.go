package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880

[upstream]
base_url = "https://portal.example.edu:6011"
api_prefix = "/StudentPortalAPI"
referer_path = "/studentportal/"
timeout_seconds = 60
idle_connections = 50

[cors]
allowed_origins = ["https://codeblech.github.io", "http://localhost:5173"]
max_age_seconds = 600

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Upstream.BaseURL != "https://portal.example.edu:6011" {
		t.Errorf("Upstream.BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.TimeoutSeconds != 60 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 60)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins len = %d, want 2", len(cfg.CORS.AllowedOrigins))
	}
	if cfg.CORS.MaxAgeSeconds != 600 {
		t.Errorf("CORS.MaxAgeSeconds = %d, want %d", cfg.CORS.MaxAgeSeconds, 600)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[upstream]
base_url = "https://portal.example.edu:6011"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Upstream.APIPrefix != "/StudentPortalAPI" {
		t.Errorf("default api_prefix = %q", cfg.Upstream.APIPrefix)
	}
	if cfg.Upstream.RefererPath != "/studentportal/" {
		t.Errorf("default referer_path = %q", cfg.Upstream.RefererPath)
	}
	if cfg.Upstream.TimeoutSeconds != 30 {
		t.Errorf("default timeout_seconds = %d, want 30", cfg.Upstream.TimeoutSeconds)
	}
	if cfg.CORS.MaxAgeSeconds != 86400 {
		t.Errorf("default max_age_seconds = %d, want 86400", cfg.CORS.MaxAgeSeconds)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("default log = %q/%q, want info/json", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default metrics path = %q", cfg.Metrics.Path)
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[upstream]
base_url = "https://portal.example.edu:6011"

[cors]
allowed_origins = ["https://old.example.org"]
`)

	cli := &CLI{
		Config:         path,
		Port:           7000,
		UpstreamURL:    "https://other.example.edu:6011",
		AllowedOrigins: "https://a.example.org, https://b.example.org",
		LogLevel:       "warn",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != "https://other.example.edu:6011" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	want := []string{"https://a.example.org", "https://b.example.org"}
	if len(cfg.CORS.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.CORS.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORS.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.CORS.AllowedOrigins[i], want[i])
		}
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_NoFileWithCLI(t *testing.T) {
	// No config file at all: flags/env must be enough.
	cli := &CLI{
		Config:      filepath.Join(t.TempDir(), "missing.toml"),
		UpstreamURL: "https://portal.example.edu:6011",
	}

	if _, err := Load(cli); err == nil {
		t.Error("explicit missing file should error")
	}

	cli.Config = ""
	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() without file error = %v", err)
	}
	if cfg.Upstream.BaseURL != "https://portal.example.edu:6011" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
}

func TestLoad_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing base_url", `
[server]
port = 8080
`},
		{"base_url with path", `
[upstream]
base_url = "https://portal.example.edu:6011/StudentPortalAPI"
`},
		{"base_url bad scheme", `
[upstream]
base_url = "ftp://portal.example.edu"
`},
		{"api_prefix without slash", `
[upstream]
base_url = "https://portal.example.edu:6011"
api_prefix = "StudentPortalAPI"
`},
		{"origin with path", `
[upstream]
base_url = "https://portal.example.edu:6011"

[cors]
allowed_origins = ["https://site.example.org/app"]
`},
		{"negative timeout", `
[upstream]
base_url = "https://portal.example.edu:6011"
timeout_seconds = -1
`},
		{"bad log level", `
[upstream]
base_url = "https://portal.example.edu:6011"

[log]
level = "verbose"
`},
		{"metrics path conflicts", `
[upstream]
base_url = "https://portal.example.edu:6011"

[metrics]
enabled = true
path = "/proxy/metrics"
`},
		{"rate limit enabled without rps", `
[upstream]
base_url = "https://portal.example.edu:6011"

[server.rate_limit]
enabled = true
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.data)
			if _, err := Load(cliWithPath(path)); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 9000}
	if got := sc.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:9000")
	}
}

func TestWarnPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	path := writeConfig(t, `
[upstream]
base_url = "https://portal.example.edu:6011"
`)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "chmod 600") {
		t.Errorf("expected permission warning, got %q", buf.String())
	}
}
