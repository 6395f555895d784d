package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"lockbox/internal/config"
	"lockbox/internal/database"
	"lockbox/internal/encryption"
	"lockbox/internal/httpapi"
	"lockbox/internal/lockbox"
	"lockbox/internal/screen"
	"lockbox/internal/session"
	"lockbox/internal/staging"
	"lockbox/internal/vault"
)

const shutdownTimeout = 10 * time.Second

// App is the application layer between the CLI and FileService.
// It constructs all dependencies from config and releases them on Close.
type App struct {
	cfg      *config.Config
	op       *Operation
	store    lockbox.Store
	keys     *encryption.KeyManager
	vault    lockbox.Vault
	staging  lockbox.StagingArea
	revoked  session.RevocationStore
	sessions *session.Manager
	service  *lockbox.FileService
	server   *httpapi.Server
	logger   lockbox.Logger
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config.
// operation names the CLI command being run (e.g. "serve", "user-add").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	return newApp(cfg, operation, os.Stderr)
}

func newApp(cfg *config.Config, operation string, stderr io.Writer) (_ *App, err error) {
	clock := lockbox.RealClock{}
	a := &App{cfg: cfg, op: NewOperation(operation, clock.Now())}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger, logFile, err := newLogger(cfg.LogDir, a.op.ID(), stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.logFile = logFile
	a.logger = &slogAdapter{l: logger}

	a.keys, err = encryption.OpenKeyManager(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}
	if a.keys.Created() {
		a.logger.Warn("generated new encryption key", "kind", a.keys.Kind(), "path", a.keys.Path())
	}

	a.vault, err = vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	a.store, err = database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if m, ok := a.store.(database.MigratableStore); ok {
		if err := m.CheckMigrations(); err != nil {
			return nil, fmt.Errorf("database schema out of date (run \"lockbox db migrate\"): %w", err)
		}
	}

	a.staging, err = staging.NewStagingAreaFromConfig(cfg.Staging)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}

	a.revoked, err = session.NewRevocationStoreFromConfig(cfg.Sessions, clock)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	ttl := cfg.Server.TokenTTL.Duration
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	a.sessions, err = session.NewManager(cfg.Server.TokenSecret, ttl, a.revoked, clock)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	blobs := lockbox.NewEncryptedBlobStore(a.vault, a.keys.Cipher())
	a.service = lockbox.NewFileService(a.store, blobs, screen.NewFromConfig(cfg.Screening), a.staging,
		a.logger, clock, lockbox.NewTimeIDGenerator(clock))

	a.server = httpapi.NewServer(a.service, a.sessions, a.logger, httpapi.Options{
		CookieName:     cfg.Server.CookieName,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		SecureCookie:   cfg.Server.SecureCookie,
	})

	return a, nil
}

// Service returns the wired FileService.
func (a *App) Service() *lockbox.FileService {
	return a.service
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// AddUser creates an account from the command line.
func (a *App) AddUser(username, password string) error {
	return a.service.Register(username, password)
}

// AuditLog returns every audit event, oldest first. It bypasses the session
// check because only an operator with access to the config can run it.
func (a *App) AuditLog() ([]*lockbox.AuditEvent, error) {
	return a.store.ListEvents()
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Listen,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("listening", "addr", a.cfg.Server.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// Close releases every resource the App opened. It is safe to call on a
// partially constructed App.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.revoked != nil {
		keep(a.revoked.Close())
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}
	}
	if a.logFile != nil {
		keep(a.logFile.Close())
	}
	return firstErr
}

// MigrateDatabase applies pending schema migrations. Stores without a
// schema (the JSON document store) need none.
func MigrateDatabase(cfg config.DatabaseConfig) (migrated bool, err error) {
	store, err := database.NewStoreFromConfig(cfg)
	if err != nil {
		return false, fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	m, ok := store.(database.MigratableStore)
	if !ok {
		return false, nil
	}
	if err := m.Migrate(); err != nil {
		return false, err
	}
	return true, nil
}

// InitKey loads the encryption key, generating it if it does not exist yet.
func InitKey(cfg config.EncryptionConfig) (*encryption.KeyManager, error) {
	return encryption.OpenKeyManager(cfg)
}
