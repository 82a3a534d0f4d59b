package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"eventtrack/internal/bootstrap/config"
)

func TestOpenCreatesSQLiteDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "state", "records.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if info, err := os.Stat(filepath.Dir(dsn)); err != nil || !info.IsDir() {
		t.Fatalf("sqlite directory not created: %v", err)
	}
}

func TestOpenRejectsPostgresDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", DSN: "postgres://x"}); err == nil {
		t.Fatalf("Open() expected error for postgres driver")
	}
}

func TestOpenPoolRejectsSQLiteDriver(t *testing.T) {
	if _, err := OpenPool(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: "x.sqlite"}); err == nil {
		t.Fatalf("OpenPool() expected error for sqlite driver")
	}
}

func TestEnsureSQLiteDirectoryIgnoresMemory(t *testing.T) {
	for _, dsn := range []string{":memory:", "file::memory:?cache=shared", ""} {
		if err := ensureSQLiteDirectory(context.Background(), dsn); err != nil {
			t.Fatalf("ensureSQLiteDirectory(%q) error = %v", dsn, err)
		}
	}
}
