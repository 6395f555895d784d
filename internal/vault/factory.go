package vault

import (
	"fmt"

	"lockbox/internal/config"
	"lockbox/internal/lockbox"
)

// NewVaultFromConfig creates the ciphertext vault named in cfg and checks it
// is usable before any upload is accepted. An empty type selects the
// filesystem vault and an empty name falls back to the type.
func NewVaultFromConfig(cfg config.VaultConfig) (lockbox.Vault, error) {
	kind := cfg.Type
	if kind == "" {
		kind = "filesystem"
	}
	name := cfg.Name
	if name == "" {
		name = kind
	}

	var (
		v   lockbox.Vault
		err error
	)
	switch kind {
	case "memory":
		v = NewMemoryVault(name)
	case "s3":
		cfg.Name = name
		v, err = NewS3Vault(cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault %q requires fs_vault_root to be set", name)
		}
		v, err = NewFileSystemVault(name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := v.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("%s vault %q is not usable: %w", kind, name, err)
	}
	return v, nil
}
