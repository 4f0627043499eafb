package interfaces

import "battery-observer/src/models"

// -----------------------------------------------------------------------------
// IReadingView is the read side of the reading store used by the dashboard.
// -----------------------------------------------------------------------------

type IReadingView interface {
	Latest(entityID string) (models.MReading, bool)
	SeriesFor(entityID string) []models.MReading
	AllTrackedIDs() []string
	Snapshot() map[string]models.MReading
}
