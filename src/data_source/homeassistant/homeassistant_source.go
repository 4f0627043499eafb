package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"battery-observer/src/helpers"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/models"

	"github.com/gorilla/websocket"
)

const (
	subscriptionID  = 1
	writeWait       = 2 * time.Second
	defaultPongWait = 60 * time.Second
)

// HomeAssistantSource keeps one websocket session to the hub alive and
// forwards state_changed events to a handler. Every failure ends the session;
// a new one starts after RetryDelay.
type HomeAssistantSource struct {
	Config           models.MEventSourceConfig
	RetryDelay       time.Duration
	HandshakeTimeout time.Duration
	PongWait         time.Duration // streaming read deadline, extended by each pong
	PingPeriod       time.Duration // must be shorter than PongWait
	Logger           *logger.Logger
	Errors           *helpers.ErrorHandler

	dialer     *websocket.Dialer
	state      atomic.Int32
	sessions   atomic.Int64
	listenerMu sync.Mutex
	listeners  []func(models.ConnectionState)
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	mu         sync.Mutex
}

var _ interfaces.IEventSource = (*HomeAssistantSource)(nil)

// -----------------------------------------------------------------------------

func NewHomeAssistantSource(cfg models.MEventSourceConfig, log *logger.Logger) *HomeAssistantSource {
	if log == nil {
		log = logger.NewLogger(nil, "HomeAssistantSource")
	}
	handshake := time.Duration(cfg.HandshakeTimeoutSeconds) * time.Second
	pongWait := time.Duration(cfg.PongWaitSeconds) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	return &HomeAssistantSource{
		Config:           cfg,
		RetryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		HandshakeTimeout: handshake,
		PongWait:         pongWait,
		PingPeriod:       (pongWait * 9) / 10,
		Logger:           log,
		Errors:           helpers.NewErrorHandler(log),
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshake,
		},
	}
}

// -----------------------------------------------------------------------------

func (s *HomeAssistantSource) Name() string {
	return "homeassistant"
}

// -----------------------------------------------------------------------------

// State reports the current connection state
func (s *HomeAssistantSource) State() models.ConnectionState {
	return models.ConnectionState(s.state.Load())
}

// -----------------------------------------------------------------------------

// Sessions returns how many connection attempts have been made
func (s *HomeAssistantSource) Sessions() int64 {
	return s.sessions.Load()
}

// -----------------------------------------------------------------------------

// OnStateChange registers fn to be called on every state transition. fn runs
// on the source goroutine and must not block.
func (s *HomeAssistantSource) OnStateChange(fn func(models.ConnectionState)) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// -----------------------------------------------------------------------------

func (s *HomeAssistantSource) setState(st models.ConnectionState) {
	if models.ConnectionState(s.state.Swap(int32(st))) == st {
		return
	}
	s.Logger.Debug("Connection state: %s", st)

	s.listenerMu.Lock()
	listeners := s.listeners
	s.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

// -----------------------------------------------------------------------------

// Start runs the source on its own goroutine
func (s *HomeAssistantSource) Start(parentCtx context.Context, handler interfaces.StateChangeHandler, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.isRunning.Store(true)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.isRunning.Store(false)
		_ = s.Run(ctx, handler)
	}()
	s.Logger.Info("Started HomeAssistantSource: %s", s.Config.URL)
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *HomeAssistantSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.Logger.Info("Stopped HomeAssistantSource")
	return nil
}

// -----------------------------------------------------------------------------

// Run keeps a session alive until ctx is cancelled. The delay between a
// failed session and the next attempt is fixed.
func (s *HomeAssistantSource) Run(ctx context.Context, handler interfaces.StateChangeHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.session(ctx, handler)
		s.setState(models.StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		s.Errors.Handle(err, "HomeAssistantSource session")

		s.Logger.Info("Reconnecting in %s", s.RetryDelay)
		timer := time.NewTimer(s.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// -----------------------------------------------------------------------------

func (s *HomeAssistantSource) session(ctx context.Context, handler interfaces.StateChangeHandler) error {
	s.sessions.Add(1)
	s.setState(models.StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, s.HandshakeTimeout)
	conn, _, err := s.dialer.DialContext(dialCtx, s.Config.URL, nil)
	cancel()
	if err != nil {
		return helpers.NewConnectionError(fmt.Sprintf("dial %s", s.Config.URL), err)
	}
	defer conn.Close()

	// Cancellation unblocks the pending read by closing the socket
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(s.HandshakeTimeout)); err != nil {
		return helpers.NewConnectionError("set handshake deadline", err)
	}
	if err := s.authenticate(conn); err != nil {
		return err
	}
	if err := s.subscribe(conn); err != nil {
		return err
	}
	// A hub that stops answering pings ends the session by read timeout
	if err := conn.SetReadDeadline(time.Now().Add(s.PongWait)); err != nil {
		return helpers.NewConnectionError("set read deadline", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.PongWait))
	})
	go s.keepAlive(conn, done)

	s.setState(models.StateStreaming)
	s.Errors.ResetErrorCount()
	s.Logger.Info("Subscribed to %s events", eventStateChanged)

	for {
		msg, err := readMessage(conn)
		if err != nil {
			return err
		}
		change, ok := msg.stateChange()
		if !ok {
			continue
		}
		if err := s.dispatch(handler, change); err != nil {
			return err
		}
	}
}

// -----------------------------------------------------------------------------

// keepAlive pings the hub every PingPeriod until done is closed. A failed ping
// closes the connection, which fails the pending read.
func (s *HomeAssistantSource) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.Logger.Warning("Ping failed: %v", err)
				conn.Close()
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *HomeAssistantSource) authenticate(conn *websocket.Conn) error {
	s.setState(models.StateAuthenticating)

	if err := conn.WriteJSON(authMessage{Type: typeAuth, AccessToken: s.Config.Token}); err != nil {
		return helpers.NewConnectionError("send auth", err)
	}

	msg, err := readMessage(conn)
	if err != nil {
		return err
	}
	if msg.Type == typeAuthRequired {
		s.Logger.Debug("Hub requested auth (version %s)", msg.HAVersion)
		if msg, err = readMessage(conn); err != nil {
			return err
		}
	}

	s.Logger.Info("Auth result: %s", msg.Type)
	if msg.Type == typeAuthOK {
		return nil
	}
	if s.Config.StrictAuth {
		return helpers.NewHandshakeError(fmt.Sprintf("authentication rejected (%s)", msg.Type), fmt.Errorf("%s", msg.Message))
	}
	s.Logger.Warning("Continuing without confirmed auth: %s %s", msg.Type, msg.Message)
	return nil
}

// -----------------------------------------------------------------------------

func (s *HomeAssistantSource) subscribe(conn *websocket.Conn) error {
	s.setState(models.StateSubscribing)

	req := subscribeMessage{ID: subscriptionID, Type: typeSubscribeEvents, EventType: eventStateChanged}
	if err := conn.WriteJSON(req); err != nil {
		return helpers.NewConnectionError("send subscribe", err)
	}

	ack, err := readMessage(conn)
	if err != nil {
		return err
	}
	s.Logger.Info("Subscription ack: type=%s id=%d", ack.Type, ack.ID)
	if s.Config.StrictAuth && ack.Success != nil && !*ack.Success {
		return helpers.NewHandshakeError("subscription rejected", fmt.Errorf("%s", ack.Message))
	}
	return nil
}

// -----------------------------------------------------------------------------

// dispatch runs the handler, turning a panic into a session error so one bad
// event cannot stop ingestion.
func (s *HomeAssistantSource) dispatch(handler interfaces.StateChangeHandler, change models.MStateChange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic on %s: %v", change.EntityID, r)
		}
	}()
	handler(change)
	return nil
}

// -----------------------------------------------------------------------------

func readMessage(conn *websocket.Conn) (*hubMessage, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, helpers.NewConnectionError("read", err)
	}
	var msg hubMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, helpers.NewDecodeError("decode hub message", err)
	}
	return &msg, nil
}
