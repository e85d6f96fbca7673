package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/maintenance-sync/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnectionState describes the lifecycle of the push channel
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// Lifecycle events surfaced to listeners alongside domain push events
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventNewNotification = "new_notification"
)

// Handler receives the raw payload of a named event. Handlers for one
// connection are invoked in FIFO order from a single dispatch goroutine.
type Handler func(payload json.RawMessage)

// wireMessage is the framing used on the websocket in both directions
type wireMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Channel manages one logical websocket connection: connect with bounded
// retry, event dispatch, explicit disconnect. Reconnection is always
// caller-initiated; a dropped connection stays down until Connect is called
// again. Listener registrations survive disconnects.
type Channel struct {
	cfg       config.RealtimeConfig
	authToken string
	dialer    *websocket.Dialer
	logger    *zap.Logger

	mu         sync.Mutex
	state      ConnectionState
	conn       *websocket.Conn
	generation int
	nextSubID  int
	listeners  map[string]map[int]Handler
}

// NewChannel creates a disconnected channel for one authenticated session
func NewChannel(cfg config.RealtimeConfig, authToken string, logger *zap.Logger) *Channel {
	return &Channel{
		cfg:       cfg,
		authToken: authToken,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger:    logger,
		state:     StateDisconnected,
		listeners: make(map[string]map[int]Handler),
	}
}

// State returns the current connection state
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers a handler for a named event and returns a subscription id for
// Off. Registration is independent of connection state.
func (c *Channel) On(event string, h Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]Handler)
	}
	c.nextSubID++
	c.listeners[event][c.nextSubID] = h
	return c.nextSubID
}

// Off removes a previously registered handler
func (c *Channel) Off(event string, subID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners[event], subID)
}

// Connect establishes the websocket connection, retrying the dial with
// exponential backoff up to the configured elapsed bound. Calling it while
// Connecting or Connected is a no-op that returns the current state.
func (c *Channel) Connect(ctx context.Context) (ConnectionState, error) {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return state, nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Warn("Push channel connect failed", zap.Error(err))
		return StateDisconnected, err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	go c.readLoop(conn, generation)

	c.logger.Info("Push channel connected", zap.String("url", c.cfg.URL))
	c.dispatch(EventConnect, nil)
	return StateConnected, nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff
	policy.MaxElapsedTime = c.cfg.MaxDialElapsed

	var header http.Header
	if c.authToken != "" {
		header = http.Header{"Authorization": {"Bearer " + c.authToken}}
	}

	var conn *websocket.Conn
	operation := func() error {
		var err error
		conn, _, err = c.dialer.DialContext(ctx, c.cfg.URL, header)
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

// Disconnect closes the connection and transitions to Disconnected. Listener
// registrations are kept; only delivery stops.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected && c.conn == nil {
		c.mu.Unlock()
		return
	}
	// Invalidate the reader for this connection so its exit does not race a
	// later reconnect
	c.generation++
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	c.logger.Info("Push channel disconnected")
	c.dispatch(EventDisconnect, nil)
}

// Emit sends a named event to the server, fire and forget. When the channel
// is not Connected the event is dropped and logged; callers are expected to
// check State first and use the REST path instead.
func (c *Channel) Emit(event string, payload interface{}) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Debug("Emit dropped on disconnected channel", zap.String("event", event))
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to marshal emit payload", zap.String("event", event), zap.Error(err))
		return
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteJSON(wireMessage{Event: event, Payload: raw}); err != nil {
		c.logger.Warn("Failed to emit on push channel", zap.String("event", event), zap.Error(err))
	}
}

// readLoop reads frames for one connection and dispatches them in order.
// When the connection drops it transitions the channel to Disconnected,
// unless an explicit Disconnect or a newer connection already superseded it.
func (c *Channel) readLoop(conn *websocket.Conn, generation int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.generation != generation
			if !stale {
				c.generation++
				c.conn = nil
				c.state = StateDisconnected
			}
			c.mu.Unlock()

			if !stale {
				c.logger.Warn("Push channel dropped", zap.Error(err))
				conn.Close()
				c.dispatch(EventDisconnect, nil)
			}
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Discarding malformed push frame", zap.Error(err))
			continue
		}
		c.dispatch(msg.Event, msg.Payload)
	}
}

// dispatch invokes handlers in registration order, outside the lock so a
// handler may call back into the channel
func (c *Channel) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.listeners[event]))
	for id := range c.listeners[event] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.listeners[event][id])
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}
