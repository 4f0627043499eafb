package analysis

import (
	"sort"

	"battery-observer/src/analysis/core"
	"battery-observer/src/models"
)

// Window is one resampling bucket: positions into the sorted input and the
// half-open time range [StartTime, EndTime).
type Window struct {
	Indices   []int
	StartTime int64
	EndTime   int64
}

// -----------------------------------------------------------------------------

// ResampleIndices groups sorted timestamps into fixed-width windows. Empty
// windows are skipped.
func ResampleIndices(timestamps []int64, windowSize int64) []Window {
	if len(timestamps) == 0 || windowSize <= 0 {
		return []Window{}
	}

	sorted := make([]int64, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	minTs := sorted[0]
	maxTs := sorted[len(sorted)-1]

	var results []Window
	for start := minTs; start <= maxTs; start += windowSize {
		end := start + windowSize

		startIdx := SearchSorted(sorted, start)
		endIdx := SearchSorted(sorted, end)
		if startIdx >= endIdx {
			continue
		}

		indices := make([]int, endIdx-startIdx)
		for idx := startIdx; idx < endIdx; idx++ {
			indices[idx-startIdx] = idx
		}
		results = append(results, Window{Indices: indices, StartTime: start, EndTime: end})
	}

	return results
}

// -----------------------------------------------------------------------------

// ResampleReadings reduces one entity's series to at most maxPoints readings by
// averaging fixed-width time windows. Each output reading carries the time of
// the last input reading in its window.
func ResampleReadings(readings []models.MReading, maxPoints int) []models.MReading {
	if maxPoints <= 0 || len(readings) <= maxPoints {
		out := make([]models.MReading, len(readings))
		copy(out, readings)
		return out
	}

	sorted := make([]models.MReading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	timestamps := make([]int64, len(sorted))
	for i, r := range sorted {
		timestamps[i] = r.ObservedAt.UnixMilli()
	}

	span := timestamps[len(timestamps)-1] - timestamps[0]
	windowSize := span/int64(maxPoints) + 1

	windows := ResampleIndices(timestamps, windowSize)
	out := make([]models.MReading, 0, len(windows))
	for _, w := range windows {
		vals := make([]float64, len(w.Indices))
		for i, idx := range w.Indices {
			vals[i] = sorted[idx].Value
		}
		mean, _ := core.CalculateMeanStd(vals)
		last := sorted[w.Indices[len(w.Indices)-1]]
		out = append(out, models.MReading{
			EntityID:   last.EntityID,
			Value:      mean,
			ObservedAt: last.ObservedAt,
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// SeriesStats summarises a series for the dashboard API.
func SeriesStats(readings []models.MReading) models.MSeriesStats {
	if len(readings) == 0 {
		return models.MSeriesStats{}
	}
	vals := make([]float64, len(readings))
	for i, r := range readings {
		vals[i] = r.Value
	}
	mean, std := core.CalculateMeanStd(vals)
	lo, hi := core.MinMax(vals)
	return models.MSeriesStats{Count: len(vals), Min: lo, Max: hi, Mean: mean, Std: std}
}

// -----------------------------------------------------------------------------

// SearchSorted returns the first position in the ascending arr whose value is
// >= value, or len(arr) when there is none.
func SearchSorted(arr []int64, value int64) int {
	return sort.Search(len(arr), func(i int) bool {
		return arr[i] >= value
	})
}
