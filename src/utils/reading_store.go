package utils

import (
	"sort"
	"sync"

	"battery-observer/src/models"
)

// -----------------------------------------------------------------------------
// ReadingStore holds the latest reading per entity and one arrival-ordered
// series per entity used for charting. Each series is capped on its own, so a
// chatty sensor never evicts a quiet one's history. One RWMutex covers the
// index and the series so a reader never sees one updated without the other.
// -----------------------------------------------------------------------------

type ReadingStore struct {
	mu             sync.RWMutex
	latest         map[string]models.MReading
	series         map[string]*RingBuffer
	seriesCapacity int
	tracked        []string
}

// -----------------------------------------------------------------------------

// NewReadingStore creates an empty store. seriesCapacity bounds each entity's
// series; <= 0 keeps every reading for the process lifetime.
func NewReadingStore(tracked []string, seriesCapacity int) *ReadingStore {
	ids := make([]string, 0, len(tracked))
	seen := make(map[string]struct{}, len(tracked))
	for _, id := range tracked {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &ReadingStore{
		latest:         make(map[string]models.MReading),
		series:         make(map[string]*RingBuffer),
		seriesCapacity: seriesCapacity,
		tracked:        ids,
	}
}

// -----------------------------------------------------------------------------

// Record overwrites the latest reading for the entity and appends to the series
func (s *ReadingStore) Record(r models.MReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, ok := s.series[r.EntityID]
	if !ok {
		rb = NewRingBuffer(s.seriesCapacity)
		s.series[r.EntityID] = rb
	}
	s.latest[r.EntityID] = r
	rb.Append(r)
}

// -----------------------------------------------------------------------------

// Latest returns the most recent reading for the entity, if any
func (s *ReadingStore) Latest(entityID string) (models.MReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.latest[entityID]
	return r, ok
}

// -----------------------------------------------------------------------------

// SeriesFor returns a snapshot of the entity's readings in recorded order
func (s *ReadingStore) SeriesFor(entityID string) []models.MReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rb, ok := s.series[entityID]
	if !ok {
		return []models.MReading{}
	}
	return rb.GetAll()
}

// -----------------------------------------------------------------------------

// AllTrackedIDs returns the configured entity ids (sorted copy), whether or
// not they have data yet
func (s *ReadingStore) AllTrackedIDs() []string {
	out := make([]string, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of the latest-reading index
func (s *ReadingStore) Snapshot() map[string]models.MReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.MReading, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

// Size returns the number of readings currently held across all series
func (s *ReadingStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, rb := range s.series {
		total += rb.Size()
	}
	return total
}
