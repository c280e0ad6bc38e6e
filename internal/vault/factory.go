package vault

import (
	"fmt"

	"anonstream/internal/config"
	"anonstream/internal/stream"
)

// NewVaultFromConfig creates a MediaVault implementation based on the vault
// config type.
func NewVaultFromConfig(cfg config.VaultConfig) (stream.MediaVault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.MaxSize), nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.FSVaultRoot)
	case "s3":
		return NewS3Vault(cfg)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
