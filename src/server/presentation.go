package server

import (
	"fmt"
	"math"
	"time"

	"battery-observer/src/analysis"
	"battery-observer/src/interfaces"
	"battery-observer/src/models"
)

const (
	colorLow     = "#db4437"
	colorWarning = "#f4b400"
	colorOK      = "#0f9d58"
	colorUnknown = "#9e9e9e"
)

// -----------------------------------------------------------------------------

// BatteryIcon maps a battery percentage onto the Material Design icon Home
// Assistant uses for the same level.
func BatteryIcon(value float64) string {
	switch {
	case math.IsNaN(value):
		return "mdi:battery-unknown"
	case value <= 5:
		return "mdi:battery-alert"
	case value >= 95:
		return "mdi:battery"
	default:
		return fmt.Sprintf("mdi:battery-%d", int(math.Round(value/10-0.01))*10)
	}
}

// -----------------------------------------------------------------------------

// BatteryColor is red below the threshold, amber below twice the threshold
// and green otherwise.
func BatteryColor(value, threshold float64) string {
	switch {
	case value < threshold:
		return colorLow
	case value < 2*threshold:
		return colorWarning
	default:
		return colorOK
	}
}

// -----------------------------------------------------------------------------

// BuildStatusRows derives one row per tracked entity from a single snapshot of
// the index. Staleness is computed against now on every call.
func BuildStatusRows(view interfaces.IReadingView, now time.Time, window time.Duration, threshold float64) []models.MStatusRow {
	ids := view.AllTrackedIDs()
	latest := view.Snapshot()
	rows := make([]models.MStatusRow, 0, len(ids))

	for _, id := range ids {
		row := models.MStatusRow{EntityID: id, Icon: "mdi:battery-unknown", Color: colorUnknown}

		r, ok := latest[id]
		if ok {
			value := r.Value
			observed := r.ObservedAt
			row.HasData = true
			row.Value = &value
			row.ObservedAt = &observed
			row.Stale = analysis.IsStale(r.ObservedAt, now, window)
			row.Low = analysis.Evaluate(r, threshold).Emit
			row.Icon = BatteryIcon(value)
			if !row.Stale {
				row.Color = BatteryColor(value, threshold)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// -----------------------------------------------------------------------------

// statusText is what the status table prints in the battery column
func statusText(row models.MStatusRow) string {
	switch {
	case !row.HasData:
		return "No data"
	case row.Stale:
		return "Stale"
	default:
		return fmt.Sprintf("%.1f%%", *row.Value)
	}
}

// -----------------------------------------------------------------------------

func lastUpdateText(row models.MStatusRow) string {
	if row.ObservedAt == nil {
		return "-"
	}
	return row.ObservedAt.Format("2006-01-02 15:04:05")
}
