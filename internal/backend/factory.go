// Package backend selects and constructs the configured storage backend.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"sitebook/internal/config"
	"sitebook/internal/storage"
	"sitebook/internal/storage/memory"
)

// Open builds the Store named by cfg.DataBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.DataBackend {
	case "memory":
		logger.Info("using in-memory backend, data will not survive restarts")
		return memory.New(), nil
	case "sqlite":
		logger.Info("using sqlite backend", "path", cfg.SQLiteDBPath)
		return storage.NewSQLiteStore(cfg.SQLiteDBPath)
	case "postgres":
		logger.Info("using postgres backend")
		return storage.NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown data backend: %s", cfg.DataBackend)
	}
}
