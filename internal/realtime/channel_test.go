package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/maintenance-sync/internal/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pushServer is a minimal websocket endpoint that can push frames and record
// what clients emit
type pushServer struct {
	t  *testing.T
	ts *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []wireMessage
}

func newPushServer(t *testing.T) *pushServer {
	s := &pushServer{t: t}
	upgrader := websocket.Upgrader{}

	s.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			var msg wireMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, msg)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.ts.Close)
	return s
}

func (s *pushServer) url() string {
	return "ws" + strings.TrimPrefix(s.ts.URL, "http")
}

func (s *pushServer) push(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	require.NoError(s.t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(s.t, s.conns, "no client connected")
	conn := s.conns[len(s.conns)-1]
	require.NoError(s.t, conn.WriteJSON(wireMessage{Event: event, Payload: raw}))
}

func (s *pushServer) dropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}

func (s *pushServer) waitForConns(n int) {
	require.Eventually(s.t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns) >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *pushServer) receivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func testRealtimeConfig(url string) config.RealtimeConfig {
	return config.RealtimeConfig{
		URL:              url,
		HandshakeTimeout: time.Second,
		InitialBackoff:   10 * time.Millisecond,
		MaxBackoff:       50 * time.Millisecond,
		MaxDialElapsed:   500 * time.Millisecond,
		WriteTimeout:     time.Second,
	}
}

func TestConnectTransitionsToConnected(t *testing.T) {
	server := newPushServer(t)
	ch := NewChannel(testRealtimeConfig(server.url()), "token", zap.NewNop())
	defer ch.Disconnect()

	assert.Equal(t, StateDisconnected, ch.State())

	state, err := ch.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, state)
	assert.Equal(t, StateConnected, ch.State())
}

func TestConnectIsIdempotent(t *testing.T) {
	server := newPushServer(t)
	ch := NewChannel(testRealtimeConfig(server.url()), "", zap.NewNop())
	defer ch.Disconnect()

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)

	server.waitForConns(1)

	// A second Connect while Connected is a no-op
	state, err := ch.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, state)

	server.mu.Lock()
	connCount := len(server.conns)
	server.mu.Unlock()
	assert.Equal(t, 1, connCount)
}

func TestConnectFailureLeavesDisconnected(t *testing.T) {
	cfg := testRealtimeConfig("ws://127.0.0.1:1/ws")
	cfg.MaxDialElapsed = 100 * time.Millisecond
	ch := NewChannel(cfg, "", zap.NewNop())

	state, err := ch.Connect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateDisconnected, state)
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestEmitWhenDisconnectedIsNoOp(t *testing.T) {
	ch := NewChannel(testRealtimeConfig("ws://127.0.0.1:1/ws"), "", zap.NewNop())

	// Must not panic, error, or change state
	ch.Emit("mark_read", map[string]int{"id": 1})
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestEmitReachesServer(t *testing.T) {
	server := newPushServer(t)
	ch := NewChannel(testRealtimeConfig(server.url()), "", zap.NewNop())
	defer ch.Disconnect()

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)

	ch.Emit("mark_read", map[string]int{"id": 5})

	require.Eventually(t, func() bool {
		return server.receivedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Equal(t, "mark_read", server.received[0].Event)
}

func TestEventDispatchInOrder(t *testing.T) {
	server := newPushServer(t)
	ch := NewChannel(testRealtimeConfig(server.url()), "", zap.NewNop())
	defer ch.Disconnect()

	var mu sync.Mutex
	var got []int
	ch.On("tick", func(payload json.RawMessage) {
		var n int
		require.NoError(t, json.Unmarshal(payload, &n))
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)
	server.waitForConns(1)

	for i := 1; i <= 5; i++ {
		server.push("tick", i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestListenersSurviveReconnect(t *testing.T) {
	server := newPushServer(t)
	ch := NewChannel(testRealtimeConfig(server.url()), "", zap.NewNop())
	defer ch.Disconnect()

	events := make(chan json.RawMessage, 10)
	ch.On(EventNewNotification, func(payload json.RawMessage) {
		events <- payload
	})

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)
	server.waitForConns(1)
	server.push(EventNewNotification, map[string]int{"id": 1})
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("first delivery never arrived")
	}

	ch.Disconnect()
	assert.Equal(t, StateDisconnected, ch.State())

	// Same registration, new connection
	_, err = ch.Connect(context.Background())
	require.NoError(t, err)
	server.waitForConns(2)
	server.push(EventNewNotification, map[string]int{"id": 2})
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery after reconnect never arrived")
	}
}

func TestServerDropTransitionsToDisconnected(t *testing.T) {
	server := newPushServer(t)
	ch := NewChannel(testRealtimeConfig(server.url()), "", zap.NewNop())

	disconnected := make(chan struct{}, 1)
	ch.On(EventDisconnect, func(json.RawMessage) {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})

	_, err := ch.Connect(context.Background())
	require.NoError(t, err)
	server.waitForConns(1)

	server.dropClients()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect event never delivered")
	}
	assert.Equal(t, StateDisconnected, ch.State())

	// No silent auto-reconnect: the channel stays down until asked
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestOffRemovesListener(t *testing.T) {
	ch := NewChannel(testRealtimeConfig("ws://127.0.0.1:1/ws"), "", zap.NewNop())

	called := false
	id := ch.On("tick", func(json.RawMessage) { called = true })
	ch.Off("tick", id)

	ch.dispatch("tick", nil)
	assert.False(t, called)
}
