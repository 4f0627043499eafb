package analysis

import (
	"testing"

	"battery-observer/src/models"

	"github.com/stretchr/testify/assert"
)

func TestAcceptState(t *testing.T) {
	tracked := TrackedSet([]string{"sensor.a", "sensor.phone_battery"})

	cases := []struct {
		name   string
		change models.MStateChange
		value  float64
		reason RejectReason
	}{
		{"numeric", models.MStateChange{EntityID: "sensor.a", State: "15.0", HasNewState: true}, 15.0, Accepted},
		{"integer", models.MStateChange{EntityID: "sensor.a", State: "87", HasNewState: true}, 87, Accepted},
		{"padded", models.MStateChange{EntityID: "sensor.a", State: " 42.5 ", HasNewState: true}, 42.5, Accepted},
		{"untracked", models.MStateChange{EntityID: "sensor.b", State: "5.0", HasNewState: true}, 0, RejectUntracked},
		{"removed entity", models.MStateChange{EntityID: "sensor.a"}, 0, RejectNoState},
		{"unavailable", models.MStateChange{EntityID: "sensor.a", State: "unavailable", HasNewState: true}, 0, RejectSentinel},
		{"unknown mixed case", models.MStateChange{EntityID: "sensor.a", State: "Unknown", HasNewState: true}, 0, RejectSentinel},
		{"empty", models.MStateChange{EntityID: "sensor.a", State: "", HasNewState: true}, 0, RejectSentinel},
		{"text", models.MStateChange{EntityID: "sensor.a", State: "charging", HasNewState: true}, 0, RejectNonNumeric},
		{"nan", models.MStateChange{EntityID: "sensor.a", State: "NaN", HasNewState: true}, 0, RejectNonFinite},
		{"inf", models.MStateChange{EntityID: "sensor.a", State: "+Inf", HasNewState: true}, 0, RejectNonFinite},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			value, reason := AcceptState(tc.change, tracked)
			assert.Equal(t, tc.reason, reason, reason.String())
			assert.Equal(t, tc.value, value)
		})
	}
}

func TestRejectReasonString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "non_numeric", RejectNonNumeric.String())
	assert.Equal(t, "unknown", RejectReason(99).String())
}
