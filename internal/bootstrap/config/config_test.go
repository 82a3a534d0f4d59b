package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsDeriveTableNames(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, "app:\n  env: staging\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tables.Jobs != "staging-processing-jobs" {
		t.Fatalf("Tables.Jobs = %q", cfg.Tables.Jobs)
	}
	if cfg.Tables.Notifications != "staging-notifications" {
		t.Fatalf("Tables.Notifications = %q", cfg.Tables.Notifications)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if !cfg.Lifecycle.Strict {
		t.Fatalf("Lifecycle.Strict default should be true")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("EVT_TABLES_JOBS", "custom-jobs")
	t.Setenv("EVT_LIFECYCLE_STRICT", "false")

	cfg, err := Load(context.Background(), writeConfig(t, "tables:\n  jobs: from-file\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tables.Jobs != "custom-jobs" {
		t.Fatalf("Tables.Jobs = %q", cfg.Tables.Jobs)
	}
	if cfg.Lifecycle.Strict {
		t.Fatalf("Lifecycle.Strict should be overridden to false")
	}
}

func TestLoadRejectsUnsupportedDriver(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, "database:\n  driver: mongo\n  dsn: x\n"))
	if err == nil {
		t.Fatalf("Load() expected error for unsupported driver")
	}
}

func TestLoadRejectsSameTableNames(t *testing.T) {
	_, err := Load(context.Background(), writeConfig(t, "tables:\n  jobs: t\n  notifications: t\n"))
	if err == nil {
		t.Fatalf("Load() expected error for identical table names")
	}
}

func TestLoadTrimsWatchBuckets(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, "storage:\n  watch: [\" uploads \", \"\", reports]\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Storage.Watch) != 2 || cfg.Storage.Watch[0] != "uploads" || cfg.Storage.Watch[1] != "reports" {
		t.Fatalf("Storage.Watch = %#v", cfg.Storage.Watch)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
