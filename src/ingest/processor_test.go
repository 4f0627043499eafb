package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/models"
	"battery-observer/src/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return r.err
}

func (r *recordingNotifier) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type sliceQueue struct {
	readings []models.MReading
}

func (q *sliceQueue) Enqueue(r models.MReading) bool {
	q.readings = append(q.readings, r)
	return true
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newProcessor(t *testing.T, tracked []string, n *recordingNotifier) (*Processor, *utils.ReadingStore, *sliceQueue, *metrics.Metrics) {
	cfg := &models.MConfig{
		Monitor: models.MMonitorConfig{Entities: tracked, BatteryThreshold: 20, SeriesCapacity: 100},
		Notify:  models.MNotifyConfig{TimeoutSeconds: 1},
	}
	store := utils.NewReadingStore(tracked, cfg.Monitor.SeriesCapacity)
	q := &sliceQueue{}
	m := metrics.NewDiscard()
	p := NewProcessor(cfg, store, n, q, m, logger.FromZap(zaptest.NewLogger(t), "Processor"))
	p.Now = func() time.Time { return fixedNow }
	return p, store, q, m
}

func change(id, state string) models.MStateChange {
	return models.MStateChange{EntityID: id, State: state, HasNewState: true}
}

func TestProcessorScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	n := &recordingNotifier{}
	p, store, q, m := newProcessor(t, []string{"sensor.a"}, n)

	p.Handle(change("sensor.a", "15.0"))
	p.Wait()

	latest, ok := store.Latest("sensor.a")
	require.True(t, ok)
	assert.Equal(t, models.MReading{EntityID: "sensor.a", Value: 15.0, ObservedAt: fixedNow}, latest)
	require.Len(t, n.sent(), 1)
	assert.Contains(t, n.sent()[0], "sensor.a")
	assert.Contains(t, n.sent()[0], "15.0")

	p.Handle(change("sensor.a", "unavailable"))
	p.Handle(change("sensor.b", "5.0"))
	p.Wait()

	latest, _ = store.Latest("sensor.a")
	assert.Equal(t, 15.0, latest.Value)
	assert.Len(t, store.SeriesFor("sensor.a"), 1)
	_, ok = store.Latest("sensor.b")
	assert.False(t, ok)
	assert.Len(t, n.sent(), 1)
	assert.Len(t, q.readings, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsEmitted.WithLabelValues("sensor.a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadingsRejected.WithLabelValues("sentinel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadingsRejected.WithLabelValues("untracked")))
}

func TestProcessorRejectsWithoutMutation(t *testing.T) {
	n := &recordingNotifier{}
	p, store, q, _ := newProcessor(t, []string{"sensor.a"}, n)

	for _, c := range []models.MStateChange{
		change("sensor.a", "charging"),
		change("sensor.a", "NaN"),
		change("sensor.a", ""),
		{EntityID: "sensor.a"},
	} {
		p.Handle(c)
	}
	p.Wait()

	assert.Zero(t, store.Size())
	assert.Empty(t, store.SeriesFor("sensor.a"))
	assert.Empty(t, n.sent())
	assert.Empty(t, q.readings)
}

func TestProcessorNoAlertAtThreshold(t *testing.T) {
	n := &recordingNotifier{}
	p, store, _, _ := newProcessor(t, []string{"sensor.a"}, n)

	p.Handle(change("sensor.a", "20"))
	p.Handle(change("sensor.a", "87"))
	p.Wait()

	assert.Empty(t, n.sent())
	latest, _ := store.Latest("sensor.a")
	assert.Equal(t, 87.0, latest.Value)
	assert.Len(t, store.SeriesFor("sensor.a"), 2)
}

func TestProcessorRealertsAndSurvivesNotifyFailure(t *testing.T) {
	n := &recordingNotifier{err: errors.New("hub down")}
	p, store, _, m := newProcessor(t, []string{"sensor.a"}, n)

	p.Handle(change("sensor.a", "10"))
	p.Handle(change("sensor.a", "9"))
	p.Wait()

	assert.Len(t, n.sent(), 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationFailures.WithLabelValues("recording")))
	latest, _ := store.Latest("sensor.a")
	assert.Equal(t, 9.0, latest.Value)
}

func TestProcessorWithoutNotifier(t *testing.T) {
	cfg := &models.MConfig{Monitor: models.MMonitorConfig{BatteryThreshold: 20}}
	store := utils.NewReadingStore([]string{"sensor.a"}, 0)
	p := NewProcessor(cfg, store, nil, nil, nil, logger.FromZap(zaptest.NewLogger(t), "Processor"))

	p.Handle(change("sensor.a", "5"))
	p.Wait()

	_, ok := store.Latest("sensor.a")
	assert.True(t, ok)
}
