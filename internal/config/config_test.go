package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rowboat.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadExplicitFile(t *testing.T) {
	path := writeConfig(t, `
source = "prod.db"
target = "backup.db"

[daemon]
debounce = "5s"
schedule = "*/5 * * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Source != "prod.db" || cfg.Target != "backup.db" {
		t.Errorf("paths = %q -> %q, want prod.db -> backup.db", cfg.Source, cfg.Target)
	}
	if cfg.Daemon.Debounce != 5*time.Second {
		t.Errorf("debounce = %s, want 5s", cfg.Daemon.Debounce)
	}
	if cfg.Daemon.Schedule != "*/5 * * * *" {
		t.Errorf("schedule = %q", cfg.Daemon.Schedule)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `source = "a.db"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Alias != "backup" {
		t.Errorf("alias = %q, want backup", cfg.Alias)
	}
	if cfg.Daemon.Debounce != 2*time.Second {
		t.Errorf("debounce = %s, want 2s", cfg.Daemon.Debounce)
	}
	if cfg.Dashboard.Port != 8380 {
		t.Errorf("port = %d, want 8380", cfg.Dashboard.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ROWBOAT_ALIAS", "mirror")
	t.Setenv("ROWBOAT_DASHBOARD_PORT", "9999")

	cfg, err := Load(writeConfig(t, `source = "a.db"`))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Alias != "mirror" {
		t.Errorf("alias = %q, want env override mirror", cfg.Alias)
	}
	if cfg.Dashboard.Port != 9999 {
		t.Errorf("port = %d, want env override 9999", cfg.Dashboard.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowboat.toml")

	cfg := Default()
	cfg.Source = "prod.db"
	cfg.Target = "backup.db"
	cfg.Daemon.Schedule = "@hourly"

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config back: %v", err)
	}
	for _, want := range []string{"# rowboat configuration", "[daemon]", `debounce = "2s"`, "[dashboard]"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("config file missing %q:\n%s", want, raw)
		}
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Source != "prod.db" || got.Daemon.Schedule != "@hourly" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Daemon.Debounce != 2*time.Second {
		t.Errorf("debounce = %s, want 2s", got.Daemon.Debounce)
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, `source = "a.db"`)
	if err := Write(path, Default()); err == nil {
		t.Error("expected error writing over existing config")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults failed: %v", err)
	}

	bad := Default()
	bad.Alias = "no spaces"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unsafe alias")
	}

	bad = Default()
	bad.Daemon.Debounce = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero debounce")
	}

	bad = Default()
	bad.Dashboard.Port = 70000
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}
