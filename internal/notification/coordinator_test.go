package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/maintenance-sync/internal/model"
	"github.com/yourorg/maintenance-sync/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type emittedEvent struct {
	event   string
	payload interface{}
}

type fakeChannel struct {
	mu       sync.Mutex
	state    realtime.ConnectionState
	emitted  []emittedEvent
	handlers map[string]realtime.Handler
	nextID   int
}

func newFakeChannel(state realtime.ConnectionState) *fakeChannel {
	return &fakeChannel{state: state, handlers: make(map[string]realtime.Handler)}
}

func (f *fakeChannel) State() realtime.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChannel) Emit(event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emittedEvent{event, payload})
}

func (f *fakeChannel) On(event string, h realtime.Handler) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = h
	f.nextID++
	return f.nextID
}

func (f *fakeChannel) Off(event string, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeChannel) fire(event string, payload json.RawMessage) {
	f.mu.Lock()
	h := f.handlers[event]
	f.mu.Unlock()
	if h != nil {
		h(payload)
	}
}

func (f *fakeChannel) emitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emitted)
}

type fakeRestAPI struct {
	mu            sync.Mutex
	items         []model.Notification
	failMarkRead  bool
	failList      bool
	markReadDelay time.Duration
	markReadBegan chan struct{}
	listCalls     int
}

func (f *fakeRestAPI) ListAll(_ context.Context, _ int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList {
		return nil, errors.New("notification service unavailable")
	}
	out := make([]model.Notification, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeRestAPI) MarkRead(_ context.Context, notificationID int) (*model.Notification, error) {
	if f.markReadBegan != nil {
		close(f.markReadBegan)
	}
	if f.markReadDelay > 0 {
		time.Sleep(f.markReadDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarkRead {
		return nil, errors.New("notification service unavailable")
	}
	for i := range f.items {
		if f.items[i].ID == notificationID {
			f.items[i].IsRead = true
			n := f.items[i]
			return &n, nil
		}
	}
	return nil, errors.New("notification not found")
}

func (f *fakeRestAPI) MarkAllRead(_ context.Context, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	marked := 0
	for i := range f.items {
		if !f.items[i].IsRead {
			f.items[i].IsRead = true
			marked++
		}
	}
	return marked, nil
}

func newTestCoordinator(state realtime.ConnectionState, api *fakeRestAPI) (*Coordinator, *fakeChannel, *Store) {
	store := NewStore()
	channel := newFakeChannel(state)
	coord := NewCoordinator(1, store, channel, api, zap.NewNop())
	return coord, channel, store
}

func TestMarkAsReadConnectedIsOptimistic(t *testing.T) {
	api := &fakeRestAPI{}
	coord, channel, store := newTestCoordinator(realtime.StateConnected, api)
	store.UpsertAll(seed(3))

	err := coord.MarkAsRead(context.Background(), 2)
	require.NoError(t, err)

	// The store reflects the change before any server round-trip
	assert.Equal(t, 2, store.UnreadCount())
	assert.True(t, store.HasPending())
	assert.Equal(t, 1, channel.emitCount())
}

func TestMarkAsReadDisconnectedUsesRest(t *testing.T) {
	api := &fakeRestAPI{items: seed(3)}
	coord, channel, store := newTestCoordinator(realtime.StateDisconnected, api)
	store.UpsertAll(seed(3))

	err := coord.MarkAsRead(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, store.UnreadCount())
	assert.False(t, store.HasPending(), "REST path settles directly, no optimistic delta")
	assert.Zero(t, channel.emitCount())
}

func TestMarkAsReadRestFailureLeavesStoreUntouched(t *testing.T) {
	api := &fakeRestAPI{items: seed(3), failMarkRead: true}
	coord, _, store := newTestCoordinator(realtime.StateDisconnected, api)
	store.UpsertAll(seed(3))

	err := coord.MarkAsRead(context.Background(), 2)
	assert.Error(t, err)
	assert.Equal(t, 3, store.UnreadCount())
	assert.False(t, store.HasPending())
}

func TestMutationsApplyInSubmissionOrder(t *testing.T) {
	// A slow MarkAsRead REST call must not resurrect unread state after a
	// later MarkAllAsRead: mutations serialize in submission order
	api := &fakeRestAPI{
		items:         seed(5),
		markReadDelay: 50 * time.Millisecond,
		markReadBegan: make(chan struct{}),
	}
	coord, _, store := newTestCoordinator(realtime.StateDisconnected, api)
	store.UpsertAll(seed(5))

	done := make(chan error, 1)
	go func() {
		done <- coord.MarkAsRead(context.Background(), 5)
	}()

	<-api.markReadBegan
	err := coord.MarkAllAsRead(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-done)

	items, unread := store.Snapshot()
	assert.Equal(t, 0, unread)
	for _, item := range items {
		assert.True(t, item.IsRead, "notification %d must stay read", item.ID)
	}
}

func TestNewNotificationPushAppliesHintThenReloads(t *testing.T) {
	serverList := seed(4)
	api := &fakeRestAPI{items: serverList}
	coord, channel, store := newTestCoordinator(realtime.StateConnected, api)
	store.UpsertAll(seed(3))

	coord.reloadDone = make(chan struct{}, 1)
	coord.Start()

	payload, err := json.Marshal(model.Notification{ID: 4, UserID: 1, Title: "pushed"})
	require.NoError(t, err)
	channel.fire(realtime.EventNewNotification, payload)

	// The hint is applied synchronously: exactly +1
	assert.Equal(t, 4, store.UnreadCount())

	// The async reload settles on the authoritative list
	select {
	case <-coord.reloadDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never completed")
	}
	items, unread := store.Snapshot()
	assert.Len(t, items, 4)
	assert.Equal(t, 4, unread)
	assert.False(t, store.HasPending())
}

func TestReconnectTriggersReload(t *testing.T) {
	api := &fakeRestAPI{items: seed(2)}
	coord, channel, store := newTestCoordinator(realtime.StateConnected, api)

	coord.reloadDone = make(chan struct{}, 1)
	coord.Start()

	channel.fire(realtime.EventConnect, nil)

	select {
	case <-coord.reloadDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never completed")
	}
	assert.Equal(t, 2, store.UnreadCount())
}

func TestReloadFailureKeepsState(t *testing.T) {
	api := &fakeRestAPI{failList: true}
	coord, _, store := newTestCoordinator(realtime.StateDisconnected, api)
	store.UpsertAll(seed(3))

	err := coord.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 3, store.UnreadCount(), "failed reload must not wipe the cache")
}

func TestMarkAllAsReadConnectedIsOptimistic(t *testing.T) {
	api := &fakeRestAPI{}
	coord, channel, store := newTestCoordinator(realtime.StateConnected, api)
	store.UpsertAll(seed(3))

	err := coord.MarkAllAsRead(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, store.UnreadCount())
	assert.True(t, store.HasPending())
	assert.Equal(t, 1, channel.emitCount())
}
