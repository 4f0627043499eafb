package utils

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingStoreLatestIsLastWrite(t *testing.T) {
	s := NewReadingStore([]string{"sensor.a"}, 100)

	_, ok := s.Latest("sensor.a")
	assert.False(t, ok)

	for i, v := range []float64{80, 15, 42, 7.5} {
		s.Record(reading("sensor.a", v, i))
		got, ok := s.Latest("sensor.a")
		require.True(t, ok)
		assert.Equal(t, v, got.Value)
	}
}

func TestReadingStoreSeriesForSubsetInOrder(t *testing.T) {
	s := NewReadingStore([]string{"sensor.a", "sensor.b"}, 0)

	s.Record(reading("sensor.a", 1, 1))
	s.Record(reading("sensor.b", 100, 2))
	s.Record(reading("sensor.a", 2, 3))
	s.Record(reading("sensor.b", 99, 4))
	s.Record(reading("sensor.a", 3, 5))

	assert.Equal(t, []float64{1, 2, 3}, values(s.SeriesFor("sensor.a")))
	assert.Equal(t, []float64{100, 99}, values(s.SeriesFor("sensor.b")))
	assert.Empty(t, s.SeriesFor("sensor.c"))
	assert.Equal(t, 5, s.Size())
}

func TestReadingStoreCapsEachEntitySeparately(t *testing.T) {
	s := NewReadingStore([]string{"sensor.chatty", "sensor.quiet"}, 3)

	s.Record(reading("sensor.quiet", 40, 0))
	for i := 1; i <= 10; i++ {
		s.Record(reading("sensor.chatty", float64(i), i))
	}

	assert.Equal(t, []float64{8, 9, 10}, values(s.SeriesFor("sensor.chatty")))
	assert.Equal(t, []float64{40}, values(s.SeriesFor("sensor.quiet")))
	assert.Equal(t, 4, s.Size())
}

func TestReadingStoreSeriesSnapshotIsolated(t *testing.T) {
	s := NewReadingStore([]string{"sensor.a"}, 10)
	s.Record(reading("sensor.a", 1, 1))

	snap := s.SeriesFor("sensor.a")
	s.Record(reading("sensor.a", 2, 2))

	assert.Len(t, snap, 1)
	snap[0].Value = 999
	assert.Equal(t, []float64{1, 2}, values(s.SeriesFor("sensor.a")))
}

func TestReadingStoreTrackedIDs(t *testing.T) {
	s := NewReadingStore([]string{"sensor.z", "sensor.a", "sensor.z"}, 10)

	ids := s.AllTrackedIDs()
	assert.Equal(t, []string{"sensor.a", "sensor.z"}, ids)

	// tracked set is configuration, not "entities with data"
	s.Record(reading("sensor.other", 1, 1))
	ids[0] = "mutated"
	assert.Equal(t, []string{"sensor.a", "sensor.z"}, s.AllTrackedIDs())
}

func TestReadingStoreSnapshot(t *testing.T) {
	s := NewReadingStore([]string{"sensor.a", "sensor.b"}, 10)
	s.Record(reading("sensor.a", 50, 1))

	snap := s.Snapshot()
	assert.Len(t, snap, 1)
	delete(snap, "sensor.a")
	_, ok := s.Latest("sensor.a")
	assert.True(t, ok)
}

func TestReadingStoreConcurrentReaders(t *testing.T) {
	s := NewReadingStore([]string{"sensor.a", "sensor.b"}, 500)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, ok := s.Latest("sensor.a"); ok {
					// once the index holds the entity, the series must too
					assert.NotEmpty(t, s.SeriesFor("sensor.a"))
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		s.Record(reading(fmt.Sprintf("sensor.%c", 'a'+i%2), float64(i), i))
	}
	close(stop)
	wg.Wait()

	last, ok := s.Latest("sensor.a")
	require.True(t, ok)
	assert.Equal(t, 1998.0, last.Value)
}
