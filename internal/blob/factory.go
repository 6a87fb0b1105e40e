package blob

import (
	"context"
	"fmt"

	"forensicvault/internal/config"
)

// Open selects a Store implementation from configuration. An empty driver
// selects the filesystem.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
