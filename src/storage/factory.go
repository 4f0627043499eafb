package storage

import (
	"context"
	"fmt"
	"time"

	"battery-observer/src/helpers"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/models"
)

// NewArchives builds the archives selected by the storage and cache
// sections. An empty slice means nothing is mirrored.
func NewArchives(cfg *models.MConfig) ([]interfaces.IReadingArchive, error) {
	var archives []interfaces.IReadingArchive

	switch cfg.Storage.DBType {
	case "", "none":
	case "sqlite":
		archives = append(archives, NewSQLiteArchive(cfg, logger.NewLogger(cfg, "SQLiteArchive")))
	case "postgres":
		archives = append(archives, NewPostgresArchive(cfg, logger.NewLogger(cfg, "PostgresArchive")))
	case "timescale":
		archives = append(archives, NewTimescaleArchive(cfg, logger.NewLogger(cfg, "TimescaleArchive")))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}

	if cfg.Cache.Enabled {
		archives = append(archives, NewRedisCache(cfg, logger.NewLogger(cfg, "RedisCache")))
	}
	return archives, nil
}

// -----------------------------------------------------------------------------

// InitializeAll initializes every archive with retries. The first archive that
// cannot be initialized aborts startup.
func InitializeAll(ctx context.Context, archives []interfaces.IReadingArchive, eh *helpers.ErrorHandler) error {
	for _, archive := range archives {
		archive := archive
		err := eh.ExecuteWithRetry("initialize archive "+archive.Name(), 3, time.Second, func() error {
			return archive.Initialize(ctx)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
