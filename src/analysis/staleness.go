package analysis

import "time"

// IsStale reports whether a reading observed at observedAt has aged past the
// window at time now. Callers pass the current time on every render.
func IsStale(observedAt, now time.Time, window time.Duration) bool {
	return observedAt.Before(now.Add(-window))
}
