package homeassistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"battery-observer/src/data_source/homeassistant/hatest"
	"battery-observer/src/ingest"
	"battery-observer/src/logger"
	"battery-observer/src/models"
	"battery-observer/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const waitFor = 3 * time.Second

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// collector records handler calls for assertions from the test goroutine.
type collector struct {
	mu      sync.Mutex
	changes []models.MStateChange
	got     chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) handle(change models.MStateChange) {
	c.mu.Lock()
	c.changes = append(c.changes, change)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []models.MStateChange {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		c.mu.Lock()
		if len(c.changes) >= n {
			out := append([]models.MStateChange(nil), c.changes...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.got:
		case <-deadline:
			t.Fatalf("timed out waiting for %d state changes", n)
		}
	}
}

func newTestSource(t *testing.T, url, token string, strict bool) *HomeAssistantSource {
	cfg := models.MEventSourceConfig{
		URL:                     url,
		Token:                   token,
		RetryDelaySeconds:       5,
		HandshakeTimeoutSeconds: 2,
		StrictAuth:              strict,
	}
	s := NewHomeAssistantSource(cfg, logger.FromZap(zaptest.NewLogger(t), "HomeAssistantSource"))
	s.RetryDelay = 50 * time.Millisecond
	return s
}

// run starts the source and returns a stop func that cancels and waits.
func run(t *testing.T, s *HomeAssistantSource, c *collector) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	require.NoError(t, s.Start(ctx, c.handle, &wg))
	return func() {
		cancel()
		wg.Wait()
	}
}

func TestForwardsStateChangedEvents(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "secret", false)
	c := newCollector()
	stop := run(t, s, c)
	defer stop()

	require.True(t, hub.WaitSubscribed(waitFor))
	assert.Eventually(t, func() bool { return s.State() == models.StateStreaming }, waitFor, 5*time.Millisecond)

	// non-event frames and other event types are dropped
	require.NoError(t, hub.SendRaw([]byte(`{"id":2,"type":"result","success":true}`)))
	require.NoError(t, hub.SendRaw([]byte(`{"type":"event","event":{"event_type":"call_service","data":{}}}`)))
	require.NoError(t, hub.SendStateChanged("sensor.a", "15.0"))
	require.NoError(t, hub.SendRaw([]byte(`{"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"sensor.gone","new_state":null}}}`)))
	require.NoError(t, hub.SendRaw([]byte(`{"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"sensor.num","new_state":{"state":42}}}}`)))

	changes := c.wait(t, 3)
	assert.Equal(t, models.MStateChange{EntityID: "sensor.a", State: "15.0", HasNewState: true}, changes[0])
	assert.Equal(t, models.MStateChange{EntityID: "sensor.gone"}, changes[1])
	assert.Equal(t, models.MStateChange{EntityID: "sensor.num", State: "42", HasNewState: true}, changes[2])

	assert.Equal(t, []string{"secret"}, hub.AuthTokens())
	assert.Equal(t, int64(1), s.Sessions())
}

func TestReconnectsAfterClosureWithFixedDelay(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "secret", false)
	s.RetryDelay = 150 * time.Millisecond
	c := newCollector()
	stop := run(t, s, c)
	defer stop()

	require.True(t, hub.WaitSubscribed(waitFor))
	require.NoError(t, hub.SendStateChanged("sensor.a", "80"))
	c.wait(t, 1)

	for i := 0; i < 2; i++ {
		dropped := time.Now()
		hub.DropAll()
		require.True(t, hub.WaitSubscribed(waitFor))

		times := hub.ConnectTimes()
		require.Len(t, times, i+2, "exactly one reconnect per closure")
		assert.GreaterOrEqual(t, times[len(times)-1].Sub(dropped), s.RetryDelay)
	}

	// events after reconnection reach the same handler
	require.NoError(t, hub.SendStateChanged("sensor.a", "79"))
	changes := c.wait(t, 2)
	assert.Equal(t, "79", changes[1].State)
	assert.Equal(t, 0, s.Errors.ErrorCount())
}

func TestRetriesWhileHubIsDown(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	url := hub.URL()
	hub.Close()

	s := newTestSource(t, url, "secret", false)
	c := newCollector()
	stop := run(t, s, c)

	assert.Eventually(t, func() bool { return s.Sessions() >= 3 }, waitFor, 10*time.Millisecond)
	stop()
	assert.Equal(t, models.StateDisconnected, s.State())
	assert.GreaterOrEqual(t, s.Errors.ErrorCount(), 2)
}

func TestOptimisticAuthProceeds(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "wrong", false)
	c := newCollector()
	stop := run(t, s, c)
	defer stop()

	require.True(t, hub.WaitSubscribed(waitFor))
	require.NoError(t, hub.SendStateChanged("sensor.a", "55"))
	assert.Equal(t, "55", c.wait(t, 1)[0].State)
}

func TestStrictAuthFailsSession(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "wrong", true)
	c := newCollector()
	stop := run(t, s, c)

	assert.Eventually(t, func() bool { return hub.Connections() >= 2 }, waitFor, 10*time.Millisecond)
	stop()

	assert.False(t, hub.WaitSubscribed(50*time.Millisecond))
	assert.NotEqual(t, models.StateStreaming, s.State())
}

func TestDecodeErrorAndPanicRestartSession(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "secret", false)
	c := newCollector()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	panicked := false
	handler := func(change models.MStateChange) {
		if change.EntityID == "sensor.boom" && !panicked {
			panicked = true
			panic("boom")
		}
		c.handle(change)
	}
	require.NoError(t, s.Start(ctx, handler, &wg))
	defer func() {
		cancel()
		wg.Wait()
	}()

	require.True(t, hub.WaitSubscribed(waitFor))
	require.NoError(t, hub.SendRaw([]byte(`not json`)))
	require.True(t, hub.WaitSubscribed(waitFor))

	require.NoError(t, hub.SendStateChanged("sensor.boom", "1"))
	require.True(t, hub.WaitSubscribed(waitFor))

	require.NoError(t, hub.SendStateChanged("sensor.a", "33"))
	changes := c.wait(t, 1)
	assert.Equal(t, "sensor.a", changes[0].EntityID)
	assert.Equal(t, 3, hub.Connections())
}

func TestStateListenerAndStop(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "secret", false)
	var mu sync.Mutex
	var seen []models.ConnectionState
	s.OnStateChange(func(st models.ConnectionState) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	require.NoError(t, s.Start(context.Background(), newCollector().handle, &wg))
	assert.Error(t, s.Start(context.Background(), newCollector().handle, &wg))
	require.True(t, hub.WaitSubscribed(waitFor))
	require.Eventually(t, func() bool { return s.State() == models.StateStreaming }, waitFor, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.ConnectionState{
		models.StateConnecting,
		models.StateAuthenticating,
		models.StateSubscribing,
		models.StateStreaming,
		models.StateDisconnected,
	}, seen)
	assert.Error(t, s.Stop())
}

func TestSilentHubTimesOutAndReconnects(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "secret", false)
	s.PongWait = 300 * time.Millisecond
	s.PingPeriod = 100 * time.Millisecond
	c := newCollector()
	stop := run(t, s, c)
	defer stop()

	require.True(t, hub.WaitSubscribed(waitFor))
	hub.SetSilent(true)

	// the hub keeps the socket open; only the missing pongs end the session
	require.True(t, hub.WaitSubscribed(waitFor))
	assert.GreaterOrEqual(t, s.Sessions(), int64(2))
	assert.Positive(t, hub.Pings())
}

func TestAnsweredPingsKeepSessionAlive(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	s := newTestSource(t, hub.URL(), "secret", false)
	s.PongWait = 200 * time.Millisecond
	s.PingPeriod = 50 * time.Millisecond
	c := newCollector()
	stop := run(t, s, c)
	defer stop()

	require.True(t, hub.WaitSubscribed(waitFor))
	time.Sleep(4 * s.PongWait)

	assert.Equal(t, 1, hub.Connections())
	assert.Equal(t, models.StateStreaming, s.State())
	require.NoError(t, hub.SendStateChanged("sensor.a", "61"))
	assert.Equal(t, "61", c.wait(t, 1)[0].State)
}

func TestReadingsAfterReconnectLandInSameStore(t *testing.T) {
	hub := hatest.NewHub("secret").StartServer()
	defer hub.Close()

	cfg := &models.MConfig{
		Monitor: models.MMonitorConfig{Entities: []string{"sensor.a"}, BatteryThreshold: 20},
		Notify:  models.MNotifyConfig{TimeoutSeconds: 1},
	}
	store := utils.NewReadingStore(cfg.Monitor.Entities, 100)
	p := ingest.NewProcessor(cfg, store, nil, nil, nil, logger.FromZap(zaptest.NewLogger(t), "Processor"))

	s := newTestSource(t, hub.URL(), "secret", false)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	require.NoError(t, s.Start(ctx, p.Handle, &wg))
	defer func() {
		cancel()
		wg.Wait()
	}()

	latestIs := func(v float64) func() bool {
		return func() bool {
			r, ok := store.Latest("sensor.a")
			return ok && r.Value == v
		}
	}

	require.True(t, hub.WaitSubscribed(waitFor))
	require.NoError(t, hub.SendStateChanged("sensor.a", "80"))
	require.Eventually(t, latestIs(80), waitFor, 5*time.Millisecond)

	hub.DropAll()
	require.True(t, hub.WaitSubscribed(waitFor))
	require.NoError(t, hub.SendStateChanged("sensor.a", "79"))
	require.Eventually(t, latestIs(79), waitFor, 5*time.Millisecond)

	series := store.SeriesFor("sensor.a")
	require.Len(t, series, 2)
	assert.Equal(t, 80.0, series[0].Value)
	assert.Equal(t, 79.0, series[1].Value)
	assert.Equal(t, 2, hub.Connections())
}
