package interfaces

import (
	"context"

	"battery-observer/src/models"
)

// -----------------------------------------------------------------------------
// IReadingArchive is a write-only mirror of accepted readings. Nothing is read
// back from an archive at startup.
// -----------------------------------------------------------------------------

type IReadingArchive interface {

	// Name identifies the backend in logs and metrics
	Name() string

	// -----------------------------------------------------------------------------

	// Initialize sets up the schema, tables or connection.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// SaveReading writes one reading.
	SaveReading(ctx context.Context, r models.MReading) error

	// -----------------------------------------------------------------------------

	// Close the underlying connection
	Close() error
}
