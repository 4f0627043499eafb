package analysis

import (
	"math"
	"strconv"
	"strings"

	"battery-observer/src/models"
)

// RejectReason tells why a state change did not become a reading.
type RejectReason int

const (
	Accepted RejectReason = iota
	RejectUntracked
	RejectNoState
	RejectSentinel
	RejectNonNumeric
	RejectNonFinite
)

func (r RejectReason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectUntracked:
		return "untracked"
	case RejectNoState:
		return "no_state"
	case RejectSentinel:
		return "sentinel"
	case RejectNonNumeric:
		return "non_numeric"
	case RejectNonFinite:
		return "non_finite"
	default:
		return "unknown"
	}
}

// sentinelStates are the hub's placeholders for "no value right now".
var sentinelStates = map[string]struct{}{
	"":            {},
	"unknown":     {},
	"unavailable": {},
}

// -----------------------------------------------------------------------------

// TrackedSet builds the lookup set used by AcceptState.
func TrackedSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// -----------------------------------------------------------------------------

// AcceptState applies the ingestion filter to a raw state change and returns
// the parsed value when the change is a valid reading for a tracked entity.
func AcceptState(change models.MStateChange, tracked map[string]struct{}) (float64, RejectReason) {
	if _, ok := tracked[change.EntityID]; !ok {
		return 0, RejectUntracked
	}
	if !change.HasNewState {
		return 0, RejectNoState
	}

	raw := strings.TrimSpace(change.State)
	if _, ok := sentinelStates[strings.ToLower(raw)]; ok {
		return 0, RejectSentinel
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, RejectNonNumeric
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, RejectNonFinite
	}

	return value, Accepted
}
