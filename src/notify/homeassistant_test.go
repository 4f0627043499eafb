package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"battery-observer/src/helpers"
	"battery-observer/src/logger"
	"battery-observer/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServiceURL(t *testing.T) {
	cases := []struct {
		ws, service, want string
	}{
		{"ws://homeassistant.local:8123/api/websocket", "notify.notify", "http://homeassistant.local:8123/api/services/notify/notify"},
		{"wss://hub.example/api/websocket", "notify.mobile_app_phone", "https://hub.example/api/services/notify/mobile_app_phone"},
		{"ws://supervisor/core/websocket", "notify.notify", "http://supervisor/core/api/services/notify/notify"},
		{"ws://10.0.0.2:8123/api/websocket/", "persistent_notification.create", "http://10.0.0.2:8123/api/services/persistent_notification/create"},
	}
	for _, tc := range cases {
		got, err := ServiceURL(tc.ws, tc.service)
		require.NoError(t, err, tc.ws)
		assert.Equal(t, tc.want, got)
	}

	_, err := ServiceURL("ws://hub/api/websocket", "notify")
	assert.Error(t, err)
	_, err = ServiceURL("ftp://hub/api/websocket", "notify.notify")
	assert.Error(t, err)
}

func newHub(t *testing.T, status int, got *[]map[string]string, auth *string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/services/notify/mobile_app_phone", r.URL.Path)
		*auth = r.Header.Get("Authorization")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		*got = append(*got, body)
		w.WriteHeader(status)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/websocket"
}

func TestHomeAssistantNotifierPosts(t *testing.T) {
	var got []map[string]string
	var auth string
	srv := newHub(t, http.StatusOK, &got, &auth)
	defer srv.Close()

	log := logger.FromZap(zaptest.NewLogger(t), "notify")
	n, err := NewHomeAssistantNotifier(wsURL(srv), "tok", "notify.mobile_app_phone", "Battery Alert",
		network.NewNetworkManager(time.Second, log), log)
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "Low battery alert for sensor.a: 15.0%"))
	require.Len(t, got, 1)
	assert.Equal(t, map[string]string{"message": "Low battery alert for sensor.a: 15.0%", "title": "Battery Alert"}, got[0])
	assert.Equal(t, "Bearer tok", auth)
}

func TestHomeAssistantNotifierFailureIsTyped(t *testing.T) {
	var got []map[string]string
	var auth string
	srv := newHub(t, http.StatusInternalServerError, &got, &auth)
	defer srv.Close()

	log := logger.FromZap(zaptest.NewLogger(t), "notify")
	n, err := NewHomeAssistantNotifier(wsURL(srv), "tok", "notify.mobile_app_phone", "Battery Alert",
		network.NewNetworkManager(time.Second, log), log)
	require.NoError(t, err)

	err = n.Notify(context.Background(), "x")
	var nErr *helpers.NotificationError
	assert.True(t, errors.As(err, &nErr))
	assert.Len(t, got, 1, "no retry")
}

func TestHomeAssistantNotifierSkipsWithoutToken(t *testing.T) {
	var got []map[string]string
	var auth string
	srv := newHub(t, http.StatusOK, &got, &auth)
	defer srv.Close()

	log := logger.FromZap(zaptest.NewLogger(t), "notify")
	n, err := NewHomeAssistantNotifier(wsURL(srv), "", "notify.mobile_app_phone", "Battery Alert",
		network.NewNetworkManager(time.Second, log), log)
	require.NoError(t, err)

	assert.NoError(t, n.Notify(context.Background(), "x"))
	assert.Empty(t, got)
}
