package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for lockbox.
type Config struct {
	InstanceID string           `toml:"instance_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Server     ServerConfig     `toml:"server"`
	Encryption EncryptionConfig `toml:"encryption"`
	Vault      VaultConfig      `toml:"vault"`
	Database   DatabaseConfig   `toml:"database"`
	Sessions   SessionsConfig   `toml:"sessions"`
	Staging    StagingConfig    `toml:"staging"`
	Screening  ScreeningConfig  `toml:"screening"`
}

// ServerConfig holds HTTP listener and session token settings.
type ServerConfig struct {
	Listen         string   `toml:"listen"`
	TokenSecret    string   `toml:"token_secret"`     // HMAC secret for session tokens, at least 32 bytes
	TokenTTL       Duration `toml:"token_ttl"`        // defaults to 24h
	CookieName     string   `toml:"cookie_name"`      // defaults to "lockbox_session"
	MaxUploadBytes int64    `toml:"max_upload_bytes"` // defaults to 32MB
	SecureCookie   bool     `toml:"secure_cookie"`    // only send the session cookie over HTTPS
}

// EncryptionConfig selects the key kind and where the key file lives.
type EncryptionConfig struct {
	Type    string `toml:"type"` // "age" (default), "secretbox" or "test"
	KeyPath string `toml:"key_path"`
}

// VaultConfig represents configuration for the ciphertext vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores; enables path-style addressing
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the metadata store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory", "postgres" or "json"
	DataDir string `toml:"data_dir,omitempty"` // sqlite and json only
	DSN     string `toml:"dsn,omitempty"`      // postgres only
}

// SessionsConfig selects where revoked session tokens are remembered.
type SessionsConfig struct {
	Type          string `toml:"type"` // "memory" (default) or "redis"
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
}

// StagingConfig represents configuration for the download staging area.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StagingConfig struct {
	Type       string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir string `toml:"staging_dir,omitempty"` // only used for type=filesystem
	MaxSize    int64  `toml:"max_size"`              // max total size in bytes; must be positive, defaults to 64MB
}

// ScreeningConfig overrides the upload blocklists. Empty lists use the built-in defaults.
type ScreeningConfig struct {
	BlockedExtensions []string `toml:"blocked_extensions"`
	Signatures        []string `toml:"signatures"`
}

// Duration is a time.Duration written as a Go duration string ("24h") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewConfig creates a new Config with the provided values and defaults
// rooted at baseDir.
func NewConfig(instanceID, baseDir, tokenSecret string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		Server: ServerConfig{
			Listen:         "127.0.0.1:8080",
			TokenSecret:    tokenSecret,
			TokenTTL:       Duration{24 * time.Hour},
			CookieName:     "lockbox_session",
			MaxUploadBytes: 32 << 20,
		},
		Encryption: EncryptionConfig{
			Type:    "age",
			KeyPath: filepath.Join(baseDir, "keys", "secret.key"),
		},
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "data"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Sessions: SessionsConfig{Type: "memory"},
		Staging: StagingConfig{
			Type:       "filesystem",
			StagingDir: filepath.Join(baseDir, "staging"),
			MaxSize:    64 << 20,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path. The file holds
// the token secret, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
