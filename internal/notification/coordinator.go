package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yourorg/maintenance-sync/internal/model"
	"github.com/yourorg/maintenance-sync/internal/realtime"

	"go.uber.org/zap"
)

// Mutation events emitted on the push channel
const (
	emitMarkRead    = "mark_read"
	emitMarkAllRead = "mark_all_read"
)

// PushChannel is the slice of the realtime channel the coordinator uses
type PushChannel interface {
	State() realtime.ConnectionState
	Emit(event string, payload interface{})
	On(event string, h realtime.Handler) int
	Off(event string, subID int)
}

// RestAPI is the always-available REST fallback for notification state
type RestAPI interface {
	ListAll(ctx context.Context, userID int) ([]model.Notification, error)
	MarkRead(ctx context.Context, notificationID int) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userID int) (int, error)
}

// Coordinator keeps the notification store consistent across two competing
// sources of truth: low-latency push events and the authoritative REST API.
// When the channel is up, mutations apply optimistically and are emitted fire
// and forget; when it is down, the REST call must succeed before the store
// changes. All mutations are serialized so they apply in submission order,
// never completion order.
type Coordinator struct {
	userID  int
	store   *Store
	channel PushChannel
	api     RestAPI
	logger  *zap.Logger

	// serializes mutations and reloads in submission order
	mu sync.Mutex

	subIDs map[string]int

	// reloadDone, when set, is signalled after every background reload; tests
	// use it to wait for reconciliation
	reloadDone chan struct{}
}

// NewCoordinator creates a coordinator for one user's session
func NewCoordinator(userID int, store *Store, channel PushChannel, api RestAPI, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		userID:  userID,
		store:   store,
		channel: channel,
		api:     api,
		logger:  logger,
		subIDs:  make(map[string]int),
	}
}

// Store exposes the underlying state store for read subscriptions
func (c *Coordinator) Store() *Store {
	return c.store
}

// Start registers the coordinator's push listeners. A new notification is a
// hint: it is applied immediately and then reconciled with a full reload. A
// reconnect is a potential event gap, so it also triggers a reload.
func (c *Coordinator) Start() {
	c.subIDs[realtime.EventNewNotification] = c.channel.On(realtime.EventNewNotification, c.handleNewNotification)
	c.subIDs[realtime.EventConnect] = c.channel.On(realtime.EventConnect, func(json.RawMessage) {
		go c.Reload(context.Background())
	})
}

// Stop unregisters the push listeners
func (c *Coordinator) Stop() {
	for event, id := range c.subIDs {
		c.channel.Off(event, id)
	}
	c.subIDs = make(map[string]int)
}

// MarkAsRead marks one notification as read. Over a connected channel the
// store mutates optimistically before the emit; over the REST fallback the
// store only mutates after the call succeeds, so a failure leaves no partial
// state behind.
func (c *Coordinator) MarkAsRead(ctx context.Context, notificationID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel.State() == realtime.StateConnected {
		c.store.ApplyReadLocally(notificationID)
		c.channel.Emit(emitMarkRead, map[string]int{"id": notificationID})
		return nil
	}

	if _, err := c.api.MarkRead(ctx, notificationID); err != nil {
		return fmt.Errorf("failed to mark notification %d as read: %w", notificationID, err)
	}
	c.store.ConfirmRead(notificationID)
	return nil
}

// MarkAllAsRead marks every notification as read, with the same dual-path
// semantics as MarkAsRead
func (c *Coordinator) MarkAllAsRead(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel.State() == realtime.StateConnected {
		c.store.ApplyReadAllLocally()
		c.channel.Emit(emitMarkAllRead, map[string]int{"user_id": c.userID})
		return nil
	}

	if _, err := c.api.MarkAllRead(ctx, c.userID); err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	c.store.ConfirmReadAll()
	return nil
}

// Reload fetches the authoritative list and settles the store on it
func (c *Coordinator) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.api.ListAll(ctx, c.userID)
	if err != nil {
		// A failed reload is transient; the store keeps its current state
		// rather than caching an empty list as truth
		c.logger.Warn("Notification reload failed", zap.Error(err))
		c.signalReload()
		return err
	}

	c.store.UpsertAll(items)
	c.signalReload()
	return nil
}

// handleNewNotification applies a pushed notification as a low-latency hint,
// then reconciles with a full reload since push delivery is not the system
// of record
func (c *Coordinator) handleNewNotification(payload json.RawMessage) {
	var n model.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		c.logger.Warn("Discarding malformed notification push", zap.Error(err))
		return
	}

	c.store.Append(n)
	go c.Reload(context.Background())
}

func (c *Coordinator) signalReload() {
	if c.reloadDone != nil {
		select {
		case c.reloadDone <- struct{}{}:
		default:
		}
	}
}
