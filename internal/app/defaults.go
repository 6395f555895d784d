package app

import (
	"fmt"
	"os"
	"path/filepath"

	"lockbox/internal/config"
)

// Defaults are the locations a fresh lockbox installation uses.
type Defaults struct {
	ConfigPath string // LOCKBOX_CONFIG_PATH, default ~/.config/lockbox.toml
	BaseDir    string // LOCKBOX_HOME, default ~/.local/share/lockbox
	Listen     string // LOCKBOX_LISTEN, default 127.0.0.1:8080

	LogDir      string // <base>/log
	KeyPath     string // <base>/keys/secret.key
	DatabaseDir string // <base>/db
	VaultRoot   string // <base>/data
	StagingDir  string // <base>/staging
}

// GetDefaults returns the default locations, checking environment variables first.
func GetDefaults() (*Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	listen := os.Getenv("LOCKBOX_LISTEN")
	if listen == "" {
		listen = "127.0.0.1:8080"
	}

	return &Defaults{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		Listen:      listen,
		LogDir:      filepath.Join(baseDir, "log"),
		KeyPath:     filepath.Join(baseDir, "keys", "secret.key"),
		DatabaseDir: filepath.Join(baseDir, "db"),
		VaultRoot:   filepath.Join(baseDir, "data"),
		StagingDir:  filepath.Join(baseDir, "staging"),
	}, nil
}

// NewConfig builds the initial config for a new installation: a local age
// key, filesystem vault, SQLite database and filesystem staging area, all
// under the default locations.
func (d *Defaults) NewConfig(instanceID, tokenSecret string) *config.Config {
	cfg := config.NewConfig(instanceID, d.BaseDir, tokenSecret)
	cfg.LogDir = d.LogDir
	cfg.Server.Listen = d.Listen
	cfg.Encryption.KeyPath = d.KeyPath
	cfg.Database.DataDir = d.DatabaseDir
	cfg.Vault.FSVaultRoot = d.VaultRoot
	cfg.Staging.StagingDir = d.StagingDir
	return cfg
}

func getConfigPath() (string, error) {
	if path := os.Getenv("LOCKBOX_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "lockbox.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("LOCKBOX_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "lockbox"), nil
}
