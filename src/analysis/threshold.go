package analysis

import (
	"fmt"

	"battery-observer/src/models"
)

// -----------------------------------------------------------------------------

// Evaluate decides whether a reading raises a low-battery alert. The alert
// fires strictly below the threshold and on every such reading; there is no
// suppression window.
func Evaluate(r models.MReading, threshold float64) models.MAlertDecision {
	if r.Value >= threshold {
		return models.MAlertDecision{}
	}
	return models.MAlertDecision{
		Emit:    true,
		Message: FormatAlert(r.EntityID, r.Value),
	}
}

// -----------------------------------------------------------------------------

// FormatAlert renders the notification text for an entity and value.
func FormatAlert(entityID string, value float64) string {
	return fmt.Sprintf("Low battery alert for %s: %.1f%%", entityID, value)
}
