package storage

import (
	"context"
	"fmt"

	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TimescaleArchive appends readings to a TimescaleDB hypertable through a
// pgx pool. Unlike the other archives it keeps existing rows.
type TimescaleArchive struct {
	DSN    string
	Pool   *pgxpool.Pool
	Logger *logger.Logger
}

var _ interfaces.IReadingArchive = (*TimescaleArchive)(nil)

const timescaleSchema = `
	CREATE TABLE IF NOT EXISTS battery_readings (
		time TIMESTAMPTZ NOT NULL,
		entity_id TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL
	);
`

// -----------------------------------------------------------------------------

func NewTimescaleArchive(cfg *models.MConfig, log *logger.Logger) *TimescaleArchive {
	return &TimescaleArchive{
		DSN:    cfg.Storage.DBConnectionString,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *TimescaleArchive) Name() string {
	return "timescale"
}

// -----------------------------------------------------------------------------

func (d *TimescaleArchive) Initialize(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, d.DSN)
	if err != nil {
		return fmt.Errorf("invalid timescale config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("timescale unreachable: %w", err)
	}
	if _, err := pool.Exec(ctx, timescaleSchema); err != nil {
		pool.Close()
		return fmt.Errorf("failed to create battery_readings: %w", err)
	}

	// Plain Postgres without the extension still works as a table
	if _, err := pool.Exec(ctx, `SELECT create_hypertable('battery_readings', 'time', if_not_exists => TRUE)`); err != nil {
		d.Logger.Warning("create_hypertable failed, using a plain table: %v", err)
	}

	d.Pool = pool
	d.Logger.Info("TimescaleArchive initialized")
	return nil
}

// -----------------------------------------------------------------------------

func (d *TimescaleArchive) SaveReading(ctx context.Context, r models.MReading) error {
	_, err := d.Pool.Exec(ctx,
		`INSERT INTO battery_readings (time, entity_id, value) VALUES ($1, $2, $3)`,
		r.ObservedAt.UTC(), r.EntityID, r.Value)
	return err
}

// -----------------------------------------------------------------------------

func (d *TimescaleArchive) Close() error {
	if d.Pool != nil {
		d.Pool.Close()
	}
	return nil
}
