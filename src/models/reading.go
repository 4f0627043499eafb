package models

import "time"

// MReading is a single numeric observation for one tracked entity.
type MReading struct {
	EntityID   string    `json:"entity_id"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// MStateChange is the part of a state_changed event the monitor cares about.
// HasNewState is false when the hub reports new_state as null (entity removed).
type MStateChange struct {
	EntityID    string
	State       string
	HasNewState bool
}

// MAlertDecision is the outcome of evaluating one reading against the threshold.
type MAlertDecision struct {
	Emit    bool
	Message string
}
