package homeassistant

import (
	"bytes"
	"encoding/json"

	"battery-observer/src/models"
)

// Outbound frames

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeMessage struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

// -----------------------------------------------------------------------------

// hubMessage covers every frame the hub pushes: auth_required, auth_ok,
// auth_invalid, result and event.
type hubMessage struct {
	ID        int       `json:"id,omitempty"`
	Type      string    `json:"type"`
	Success   *bool     `json:"success,omitempty"`
	Message   string    `json:"message,omitempty"`
	HAVersion string    `json:"ha_version,omitempty"`
	Event     *hubEvent `json:"event,omitempty"`
}

type hubEvent struct {
	EventType string       `json:"event_type"`
	Data      hubEventData `json:"data"`
}

type hubEventData struct {
	EntityID string    `json:"entity_id"`
	NewState *hubState `json:"new_state"`
}

type hubState struct {
	// State is normally a string; numbers are tolerated and kept as text
	State json.RawMessage `json:"state"`
}

const (
	typeAuth            = "auth"
	typeAuthRequired    = "auth_required"
	typeAuthOK          = "auth_ok"
	typeAuthInvalid     = "auth_invalid"
	typeSubscribeEvents = "subscribe_events"
	eventStateChanged   = "state_changed"
)

// -----------------------------------------------------------------------------

// stateChange extracts the state_changed payload. ok is false for every other
// frame, which the read loop discards.
func (m *hubMessage) stateChange() (models.MStateChange, bool) {
	if m.Event == nil || m.Event.EventType != eventStateChanged {
		return models.MStateChange{}, false
	}
	change := models.MStateChange{EntityID: m.Event.Data.EntityID}
	if m.Event.Data.NewState != nil {
		change.HasNewState = true
		change.State = stateText(m.Event.Data.NewState.State)
	}
	return change, true
}

// -----------------------------------------------------------------------------

func stateText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
