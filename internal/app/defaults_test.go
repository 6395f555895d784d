package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	homeDir, _ := os.UserHomeDir()
	homeBase := filepath.Join(homeDir, ".local", "share", "lockbox")

	tests := []struct {
		name string
		env  map[string]string
		want Defaults
	}{
		{
			name: "env vars",
			env: map[string]string{
				"LOCKBOX_CONFIG_PATH": "/custom/config.toml",
				"LOCKBOX_HOME":        "/custom/lockbox",
				"LOCKBOX_LISTEN":      "0.0.0.0:9000",
			},
			want: Defaults{
				ConfigPath:  "/custom/config.toml",
				BaseDir:     "/custom/lockbox",
				Listen:      "0.0.0.0:9000",
				LogDir:      "/custom/lockbox/log",
				KeyPath:     "/custom/lockbox/keys/secret.key",
				DatabaseDir: "/custom/lockbox/db",
				VaultRoot:   "/custom/lockbox/data",
				StagingDir:  "/custom/lockbox/staging",
			},
		},
		{
			name: "home dir fallback",
			env:  map[string]string{"LOCKBOX_CONFIG_PATH": "", "LOCKBOX_HOME": "", "LOCKBOX_LISTEN": ""},
			want: Defaults{
				ConfigPath:  filepath.Join(homeDir, ".config", "lockbox.toml"),
				BaseDir:     homeBase,
				Listen:      "127.0.0.1:8080",
				LogDir:      filepath.Join(homeBase, "log"),
				KeyPath:     filepath.Join(homeBase, "keys", "secret.key"),
				DatabaseDir: filepath.Join(homeBase, "db"),
				VaultRoot:   filepath.Join(homeBase, "data"),
				StagingDir:  filepath.Join(homeBase, "staging"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("GetDefaults() = %+v\nwant %+v", *got, tt.want)
			}
		})
	}
}

func TestDefaults_NewConfig(t *testing.T) {
	t.Setenv("LOCKBOX_HOME", "/srv/lockbox")
	t.Setenv("LOCKBOX_LISTEN", "127.0.0.1:9443")

	d, err := GetDefaults()
	if err != nil {
		t.Fatalf("GetDefaults() error = %v", err)
	}
	cfg := d.NewConfig("instance-1", "secret")

	checks := []struct {
		field, got, want string
	}{
		{"instance_id", cfg.InstanceID, "instance-1"},
		{"base_dir", cfg.BaseDir, "/srv/lockbox"},
		{"log_dir", cfg.LogDir, d.LogDir},
		{"server.listen", cfg.Server.Listen, "127.0.0.1:9443"},
		{"server.token_secret", cfg.Server.TokenSecret, "secret"},
		{"encryption.key_path", cfg.Encryption.KeyPath, d.KeyPath},
		{"database.data_dir", cfg.Database.DataDir, d.DatabaseDir},
		{"vault.fs_vault_root", cfg.Vault.FSVaultRoot, d.VaultRoot},
		{"staging.staging_dir", cfg.Staging.StagingDir, d.StagingDir},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}
