package chart

import (
	"errors"
	"io"
	"math"
	"time"

	"battery-observer/src/analysis"
	"battery-observer/src/models"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when no entity has a reading to plot.
var ErrNoData = errors.New("no data to display")

// Options controls the rendered image.
type Options struct {
	Width     int
	Height    int
	MaxPoints int
	Threshold float64
}

// DefaultOptions is what the dashboard renders.
func DefaultOptions(threshold float64) Options {
	return Options{Width: 960, Height: 480, MaxPoints: 500, Threshold: threshold}
}

// -----------------------------------------------------------------------------

// RenderPNG plots one line per entity plus a dashed threshold line. ids fixes
// the line order; entities without readings are skipped.
func RenderPNG(w io.Writer, ids []string, view func(string) []models.MReading, opts Options) error {
	var series []gochart.Series
	minT, maxT := time.Time{}, time.Time{}
	minV, maxV := math.Inf(1), math.Inf(-1)

	for _, id := range ids {
		readings := analysis.ResampleReadings(view(id), opts.MaxPoints)
		if len(readings) == 0 {
			continue
		}
		xs := make([]time.Time, len(readings))
		ys := make([]float64, len(readings))
		for i, r := range readings {
			xs[i] = r.ObservedAt
			ys[i] = r.Value
			if minT.IsZero() || r.ObservedAt.Before(minT) {
				minT = r.ObservedAt
			}
			if r.ObservedAt.After(maxT) {
				maxT = r.ObservedAt
			}
			minV = math.Min(minV, r.Value)
			maxV = math.Max(maxV, r.Value)
		}
		series = append(series, gochart.TimeSeries{Name: id, XValues: xs, YValues: ys})
	}

	if len(series) == 0 {
		return ErrNoData
	}

	// Keep both ranges non-empty so single readings still render
	if !maxT.After(minT) {
		minT = minT.Add(-time.Minute)
		maxT = maxT.Add(time.Minute)
	}
	lowY := math.Min(0, math.Min(minV, opts.Threshold))
	highY := math.Max(100, math.Max(maxV, opts.Threshold))

	series = append(series, gochart.TimeSeries{
		Name:    "threshold",
		XValues: []time.Time{minT, maxT},
		YValues: []float64{opts.Threshold, opts.Threshold},
		Style: gochart.Style{
			StrokeColor:     drawing.ColorRed,
			StrokeDashArray: []float64{5, 5},
		},
	})

	graph := gochart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat("01-02 15:04"),
			Range: &gochart.ContinuousRange{
				Min: gochart.TimeToFloat64(minT),
				Max: gochart.TimeToFloat64(maxT),
			},
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: lowY, Max: highY},
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	return graph.Render(gochart.PNG, w)
}
