package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/AirplayDNA/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airplaydna.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"AIRPLAY_DB_PATH", "AIRPLAY_TEMP_DIR", "ACOUSTID_API_KEY", "AUDD_API_TOKEN", "LOG_LEVEL", "AIRPLAY_PORT"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	def := config.Default()
	if cfg.Server.Port != def.Server.Port || cfg.Database.Path != def.Database.Path {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Monitoring.DefaultIntervalSeconds != 60 || cfg.Monitoring.MinIntervalSeconds != 10 {
		t.Fatalf("unexpected monitoring defaults %+v", cfg.Monitoring)
	}
	if cfg.Providers.AcoustID.Threshold != 0.6 || cfg.Providers.AudD.DefaultConfidence != 80 {
		t.Fatalf("unexpected provider defaults %+v", cfg.Providers)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[database]
path = "/data/file.sqlite3"

[providers.acoustid]
api_key = "from-file"
threshold = 0.75

[monitoring]
default_interval_seconds = 30
min_interval_seconds = 15

[log]
level = "debug"
format = "json"
`)
	t.Setenv("AIRPLAY_DB_PATH", "/data/env.sqlite3")
	t.Setenv("AUDD_API_TOKEN", "audd-env")
	t.Setenv("ACOUSTID_API_KEY", "")
	t.Setenv("AIRPLAY_PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/data/env.sqlite3" {
		t.Errorf("env should override the file, got %q", cfg.Database.Path)
	}
	if cfg.Providers.AcoustID.APIKey != "from-file" || cfg.Providers.AcoustID.Threshold != 0.75 {
		t.Errorf("unexpected acoustid section %+v", cfg.Providers.AcoustID)
	}
	if cfg.Providers.AudD.APIToken != "audd-env" {
		t.Errorf("audd token = %q", cfg.Providers.AudD.APIToken)
	}
	if cfg.Monitoring.DetailLimit != config.Default().Monitoring.DetailLimit {
		t.Errorf("unset keys should keep defaults, detail_limit = %d", cfg.Monitoring.DetailLimit)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q", cfg.Log.Format)
	}
	if got := len(cfg.ServiceOptions()); got == 0 {
		t.Error("expected engine options")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("AIRPLAY_PORT", "")

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for an explicit missing file")
	}

	bad := writeConfig(t, "[server\nport = ")
	if _, err := config.Load(bad); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("AIRPLAY_PORT", "eighty")
	if _, err := config.Load(writeConfig(t, "")); err == nil || !strings.Contains(err.Error(), "AIRPLAY_PORT") {
		t.Errorf("expected AIRPLAY_PORT error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*config.Config){
		"port":         func(c *config.Config) { c.Server.Port = 0 },
		"db path":      func(c *config.Config) { c.Database.Path = " " },
		"threshold":    func(c *config.Config) { c.Providers.AcoustID.Threshold = 1.5 },
		"confidence":   func(c *config.Config) { c.Providers.AudD.DefaultConfidence = 0 },
		"interval":     func(c *config.Config) { c.Monitoring.DefaultIntervalSeconds = 5 },
		"detail limit": func(c *config.Config) { c.Monitoring.DetailLimit = 0 },
		"capture":      func(c *config.Config) { c.Audio.CaptureSeconds = -1 },
		"log format":   func(c *config.Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}

	if err := config.Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
