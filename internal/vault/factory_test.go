package vault

import (
	"testing"

	"anonstream/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()

		v, err := NewVaultFromConfig(config.VaultConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if _, ok := v.(*MemoryVault); !ok {
			t.Errorf("got %T, want *MemoryVault", v)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		t.Parallel()

		v, err := NewVaultFromConfig(config.VaultConfig{
			Type:        "filesystem",
			FSVaultRoot: t.TempDir(),
		})
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error = %v", err)
		}
		if _, ok := v.(*FileSystemVault); !ok {
			t.Errorf("got %T, want *FileSystemVault", v)
		}
	})

	t.Run("filesystem requires root", func(t *testing.T) {
		t.Parallel()

		_, err := NewVaultFromConfig(config.VaultConfig{Type: "filesystem"})
		if err == nil {
			t.Error("NewVaultFromConfig() without root succeeded, want error")
		}
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		t.Parallel()

		_, err := NewVaultFromConfig(config.VaultConfig{Type: "s3"})
		if err == nil {
			t.Error("NewVaultFromConfig() without bucket succeeded, want error")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := NewVaultFromConfig(config.VaultConfig{Type: "tape"})
		if err == nil {
			t.Error("NewVaultFromConfig() with unknown type succeeded, want error")
		}
	})
}
