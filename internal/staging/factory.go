package staging

import (
	"fmt"

	"anonstream/internal/config"
	"anonstream/internal/stream"
)

// DefaultMaxSize is the default maximum staging area size (512MB).
const DefaultMaxSize int64 = 512 * 1024 * 1024

// NewStagingAreaFromConfig creates a StagingArea implementation based on the
// config type.
func NewStagingAreaFromConfig(cfg config.StagingConfig) (stream.StagingArea, error) {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryStagingArea(maxSize), nil
	case "filesystem":
		if cfg.StagingDir == "" {
			return nil, fmt.Errorf("filesystem staging area requires staging_dir to be set")
		}
		return NewFileSystemStagingArea(cfg.StagingDir, maxSize)
	default:
		return nil, fmt.Errorf("unknown staging area type: %s", cfg.Type)
	}
}
