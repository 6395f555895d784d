package database

import (
	"testing"

	"lockbox/internal/config"
	"lockbox/internal/docstore"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory database is migrated", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		store, ok := got.(MigratableStore)
		if !ok {
			t.Fatalf("NewStoreFromConfig() = %T, want MigratableStore", got)
		}
		if err := store.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite database needs migration", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		store := got.(MigratableStore)
		if err := store.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error before migration")
		}
		if err := store.Migrate(); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		if err := store.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() after Migrate error = %v", err)
		}
	})

	t.Run("json database", func(t *testing.T) {
		got, err := NewStoreFromConfig(config.DatabaseConfig{Type: "json", DataDir: t.TempDir()})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if _, ok := got.(*docstore.DocumentStore); !ok {
			t.Errorf("NewStoreFromConfig() = %T, want *docstore.DocumentStore", got)
		}
	})

	errorCases := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"sqlite without data dir", config.DatabaseConfig{Type: "sqlite"}},
		{"postgres without dsn", config.DatabaseConfig{Type: "postgres"}},
		{"json without data dir", config.DatabaseConfig{Type: "json"}},
		{"unknown type", config.DatabaseConfig{Type: "mongo"}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStoreFromConfig(tt.cfg); err == nil {
				t.Error("NewStoreFromConfig() expected error")
			}
		})
	}
}
