package database

import (
	"fmt"
	"os"
	"path/filepath"

	"lockbox/internal/config"
	"lockbox/internal/docstore"
	"lockbox/internal/lockbox"
)

// MigratableStore is a Store whose schema is managed by migrations.
type MigratableStore interface {
	lockbox.Store
	Migrate() error
	CheckMigrations() error
}

// NewStoreFromConfig creates a Store implementation based on the database config type.
// The in-memory store is migrated on creation; other SQL stores are returned
// as-is and must be checked (or migrated) by the caller.
func NewStoreFromConfig(cfg config.DatabaseConfig) (lockbox.Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return OpenSQLite(filepath.Join(cfg.DataDir, "lockbox.db"))
	case "memory":
		store, err := OpenSQLite(":memory:")
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return store, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		return OpenPostgres(cfg.DSN)
	case "json":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for json database")
		}
		return docstore.NewDocumentStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
