package storage

import (
	"context"
	"database/sql"
	"fmt"

	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/models"

	_ "modernc.org/sqlite"
)

// SQLiteArchive mirrors readings into a local SQLite file.
type SQLiteArchive struct {
	Path   string
	DB     *sql.DB
	Logger *logger.Logger
}

var _ interfaces.IReadingArchive = (*SQLiteArchive)(nil)

// -----------------------------------------------------------------------------

func NewSQLiteArchive(cfg *models.MConfig, log *logger.Logger) *SQLiteArchive {
	return &SQLiteArchive{
		Path:   cfg.Storage.DBPath,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) Name() string {
	return "sqlite"
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite", d.Path)
	if err != nil {
		return err
	}
	// A single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	// Keep the handle only once the table is ready
	if err := d.recreateTables(ctx, db); err != nil {
		db.Close()
		return err
	}
	d.DB = db
	d.Logger.Info("SQLite archive ready at %s", d.Path)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) recreateTables(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS battery_readings"); err != nil {
		return fmt.Errorf("failed to drop battery_readings: %w", err)
	}

	// observed_at is unix milliseconds
	query := `
		CREATE TABLE battery_readings (
			entity_id TEXT NOT NULL,
			observed_at INTEGER NOT NULL,
			value REAL NOT NULL
		);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create battery_readings: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX idx_battery_readings_entity ON battery_readings (entity_id, observed_at)`); err != nil {
		return fmt.Errorf("failed to index battery_readings: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) SaveReading(ctx context.Context, r models.MReading) error {
	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO battery_readings (entity_id, observed_at, value) VALUES (?, ?, ?)`,
		r.EntityID, r.ObservedAt.UnixMilli(), r.Value)
	return err
}

// -----------------------------------------------------------------------------

func (d *SQLiteArchive) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
