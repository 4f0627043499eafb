package models

import "time"

// -----------------------------------------------------------------------------
// Dashboard response structures
// -----------------------------------------------------------------------------

// MStatusRow is one entity line of the status table.
type MStatusRow struct {
	EntityID   string     `json:"entity_id"`
	HasData    bool       `json:"has_data"`
	Value      *float64   `json:"value"`
	ObservedAt *time.Time `json:"observed_at"`
	Stale      bool       `json:"stale"`
	Low        bool       `json:"low"`
	Icon       string     `json:"icon"`
	Color      string     `json:"color"`
}

// MSeriesStats summarises a per-entity series.
type MSeriesStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// MSeriesResponse is returned by /api/series/:entity.
type MSeriesResponse struct {
	EntityID string       `json:"entity_id"`
	Stats    MSeriesStats `json:"stats"`
	Readings []MReading   `json:"readings"`
}
