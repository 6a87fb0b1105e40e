package core

import (
	"context"
	"fmt"
	"log/slog"

	"forensicvault/internal/config"
	"forensicvault/internal/infra/persistence/badger"
	"forensicvault/internal/infra/persistence/memory"
	"forensicvault/internal/infra/persistence/postgres"
	"forensicvault/internal/infra/persistence/sqlite"
	"forensicvault/pkg/domain"
)

// StorageDriver names a persistence backend.
type StorageDriver string

// Supported storage drivers.
const (
	StorageMemory   StorageDriver = "memory"
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
	StorageBadger   StorageDriver = "badger"
)

// OpenPersistentStore opens the backend selected by cfg. An empty driver
// selects SQLite. logger may be nil.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *domain.RulesEngine, logger *slog.Logger) (domain.PersistentStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, engine)
	case StorageBadger:
		return badger.NewStore(badger.Config{Path: cfg.BadgerPath, SyncWrites: true, Logger: logger}, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
