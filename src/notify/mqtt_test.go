package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"battery-observer/src/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(tok.done)
	}
	return tok
}

func (f *fakeToken) Wait() bool                     { <-f.done; return true }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (f *fakeToken) Done() <-chan struct{}          { return f.done }
func (f *fakeToken) Error() error                   { return f.err }

type fakePublisher struct {
	topic   string
	payload []byte
	token   *fakeToken
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.payload = payload.([]byte)
	return f.token
}

func TestMQTTNotifierPublishes(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(nil, true)}
	n := newMQTTNotifier(pub, "battery-observer/alerts", "Battery Alert", logger.FromZap(zaptest.NewLogger(t), "mqtt"))
	n.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, n.Notify(context.Background(), "Low battery alert for sensor.a: 15.0%"))
	assert.Equal(t, "battery-observer/alerts", pub.topic)

	var got map[string]string
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "Battery Alert", got["title"])
	assert.Equal(t, "Low battery alert for sensor.a: 15.0%", got["message"])
	assert.Equal(t, "2024-05-01T12:00:00Z", got["sent_at"])
}

func TestMQTTNotifierErrors(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(errors.New("not connected"), true)}
	n := newMQTTNotifier(pub, "t", "Battery Alert", logger.FromZap(zaptest.NewLogger(t), "mqtt"))
	assert.ErrorContains(t, n.Notify(context.Background(), "x"), "not connected")

	// a publish that never completes gives up with the context
	pub.token = newFakeToken(nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Notify(ctx, "x"), context.DeadlineExceeded)
}
