package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/models"

	_ "github.com/lib/pq"
)

var unsafeSchemaChars = regexp.MustCompile(`[^a-z0-9_]+`)

// PostgresArchive mirrors readings into a per-application schema.
type PostgresArchive struct {
	DSN    string
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

var _ interfaces.IReadingArchive = (*PostgresArchive)(nil)

// -----------------------------------------------------------------------------

func NewPostgresArchive(cfg *models.MConfig, log *logger.Logger) *PostgresArchive {
	return &PostgresArchive{
		DSN:    cfg.Storage.DBConnectionString,
		Schema: SchemaName(cfg.Name),
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// SchemaName turns the application name into a bare Postgres identifier.
func SchemaName(name string) string {
	s := unsafeSchemaChars.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "battery_observer"
	}
	return s
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) Name() string {
	return "postgres"
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", d.DSN)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.recreateTables(ctx, db); err != nil {
		db.Close()
		return err
	}
	d.DB = db

	d.Logger.Info("PostgresArchive initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) recreateTables(ctx context.Context, db *sql.DB) error {
	table := d.table()
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE %s (
			entity_id TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL,
			value DOUBLE PRECISION NOT NULL
		);
	`, table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) table() string {
	return fmt.Sprintf(`"%s"."battery_readings"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) SaveReading(ctx context.Context, r models.MReading) error {
	query := fmt.Sprintf(`INSERT INTO %s (entity_id, observed_at, value) VALUES ($1, $2, $3)`, d.table())
	_, err := d.DB.ExecContext(ctx, query, r.EntityID, r.ObservedAt.UTC(), r.Value)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresArchive) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
