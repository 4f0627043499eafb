// Package hatest provides an in-process stand-in for the Home Assistant
// websocket API. It speaks just enough of the protocol for the event source:
// auth_required, auth, subscribe_events and state_changed events.
package hatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub accepts websocket clients and pushes events to every subscribed one.
type Hub struct {
	Token string

	mu           sync.Mutex
	conns        map[*websocket.Conn]*sync.Mutex
	connectTimes []time.Time
	authTokens   []string
	subscribed   chan struct{}
	server       *httptest.Server
	silent       atomic.Bool
	pings        atomic.Int64
}

// -----------------------------------------------------------------------------

func NewHub(token string) *Hub {
	return &Hub{
		Token:      token,
		conns:      make(map[*websocket.Conn]*sync.Mutex),
		subscribed: make(chan struct{}, 256),
	}
}

// -----------------------------------------------------------------------------

// StartServer serves the hub on a loopback httptest server.
func (h *Hub) StartServer() *Hub {
	h.server = httptest.NewServer(h)
	return h
}

// -----------------------------------------------------------------------------

// URL is the websocket endpoint of the test server.
func (h *Hub) URL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/api/websocket"
}

// -----------------------------------------------------------------------------

// HTTPURL is the plain http base of the test server.
func (h *Hub) HTTPURL() string {
	return h.server.URL
}

// -----------------------------------------------------------------------------

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.connectTimes = append(h.connectTimes, time.Now())
	h.mu.Unlock()

	if err := h.handshake(conn); err != nil {
		return
	}

	conn.SetPingHandler(func(data string) error {
		h.pings.Add(1)
		if h.silent.Load() {
			return nil
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.conns[conn] = writeMu
	h.mu.Unlock()

	select {
	case h.subscribed <- struct{}{}:
	default:
	}

	// Hold the connection until the client or the hub closes it
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (h *Hub) handshake(conn *websocket.Conn) error {
	if err := conn.WriteJSON(map[string]string{"type": "auth_required", "ha_version": "2024.5.0"}); err != nil {
		return err
	}

	var auth struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := conn.ReadJSON(&auth); err != nil {
		return err
	}
	h.mu.Lock()
	h.authTokens = append(h.authTokens, auth.AccessToken)
	h.mu.Unlock()

	// The hub keeps the socket open after auth_invalid so optimistic clients
	// can be observed carrying on.
	if auth.Type == "auth" && auth.AccessToken == h.Token {
		err := conn.WriteJSON(map[string]string{"type": "auth_ok", "ha_version": "2024.5.0"})
		if err != nil {
			return err
		}
	} else if err := conn.WriteJSON(map[string]string{"type": "auth_invalid", "message": "Invalid access token"}); err != nil {
		return err
	}

	var sub struct {
		ID        int    `json:"id"`
		Type      string `json:"type"`
		EventType string `json:"event_type"`
	}
	if err := conn.ReadJSON(&sub); err != nil {
		return err
	}
	if sub.Type != "subscribe_events" {
		return fmt.Errorf("unexpected frame %q", sub.Type)
	}
	return conn.WriteJSON(map[string]interface{}{
		"id":      sub.ID,
		"type":    "result",
		"success": true,
		"result":  nil,
	})
}

// -----------------------------------------------------------------------------

// WaitSubscribed blocks until one more client finishes its subscription.
func (h *Hub) WaitSubscribed(timeout time.Duration) bool {
	select {
	case <-h.subscribed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// -----------------------------------------------------------------------------

// SendStateChanged pushes a state_changed event to every subscribed client.
func (h *Hub) SendStateChanged(entityID, state string) error {
	event := map[string]interface{}{
		"id":   1,
		"type": "event",
		"event": map[string]interface{}{
			"event_type": "state_changed",
			"data": map[string]interface{}{
				"entity_id": entityID,
				"new_state": map[string]interface{}{"entity_id": entityID, "state": state},
			},
		},
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.SendRaw(data)
}

// -----------------------------------------------------------------------------

// SendRaw pushes an arbitrary text frame to every subscribed client. It fails
// only when no client received the frame.
func (h *Hub) SendRaw(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	lastErr := fmt.Errorf("no subscribed clients")
	for conn, writeMu := range h.conns {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		writeMu.Unlock()
		if err != nil {
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}

// -----------------------------------------------------------------------------

// DropAll closes every client connection from the hub side.
func (h *Hub) DropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

// -----------------------------------------------------------------------------

// SetSilent makes the hub stop answering pings while keeping every socket
// open, like a hub that died without closing its connections.
func (h *Hub) SetSilent(silent bool) {
	h.silent.Store(silent)
}

// -----------------------------------------------------------------------------

// Pings is the number of pings received from clients.
func (h *Hub) Pings() int64 {
	return h.pings.Load()
}

// -----------------------------------------------------------------------------

// Connections is the number of websocket upgrades served so far.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connectTimes)
}

// -----------------------------------------------------------------------------

func (h *Hub) ConnectTimes() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Time, len(h.connectTimes))
	copy(out, h.connectTimes)
	return out
}

// -----------------------------------------------------------------------------

func (h *Hub) AuthTokens() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.authTokens))
	copy(out, h.authTokens)
	return out
}

// -----------------------------------------------------------------------------

// Close drops every client and stops the test server.
func (h *Hub) Close() {
	h.DropAll()
	if h.server != nil {
		h.server.CloseClientConnections()
		h.server.Close()
	}
}
