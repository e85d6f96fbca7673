package handler

import (
	"net/http"
	"strconv"

	"github.com/yourorg/maintenance-sync/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves notification state out of the per-user session
// store and routes mutations through the sync coordinator
type NotificationHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(sessions *session.Manager, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// Login establishes the caller's session and connects its push channel
// POST /api/v1/session
func (h *NotificationHandler) Login(c *gin.Context) {
	token, _ := c.Get("token")

	s, err := h.sessions.Login(c.Request.Context(), token.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       s.UserID,
		"channel_state": s.Channel().State(),
	})
}

// Logout tears down the caller's session
// DELETE /api/v1/session
func (h *NotificationHandler) Logout(c *gin.Context) {
	userID, _ := c.Get("userID")
	h.sessions.Logout(userID.(int))
	c.Status(http.StatusNoContent)
}

// Reconnect re-establishes the caller's push channel after a drop
// POST /api/v1/session/reconnect
func (h *NotificationHandler) Reconnect(c *gin.Context) {
	userID, _ := c.Get("userID")

	if err := h.sessions.Reconnect(c.Request.Context(), userID.(int)); err != nil {
		h.logger.Warn("Reconnect failed", zap.Int("user_id", userID.(int)), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Reconnect failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetNotifications handles retrieving the session's notification list
// GET /api/v1/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	items, unread := s.Coordinator().Store().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"total":         len(items),
		"unread":        unread,
	})
}

// GetUnreadCount handles retrieving the unread notification count
// GET /api/v1/notifications/count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": s.Coordinator().Store().UnreadCount()})
}

// MarkNotificationAsRead handles marking a notification as read
// PUT /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkNotificationAsRead(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if err := s.Coordinator().MarkAsRead(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to mark notification as read", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update notification"})
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllAsRead handles marking all notifications as read
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	if err := s.Coordinator().MarkAllAsRead(c.Request.Context()); err != nil {
		h.logger.Error("Failed to mark all notifications as read", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.Status(http.StatusNoContent)
}

// session resolves the caller's active session or responds 409: notification
// state only exists inside a logged-in session
func (h *NotificationHandler) session(c *gin.Context) (*session.Session, bool) {
	userID, _ := c.Get("userID")

	s, ok := h.sessions.Get(userID.(int))
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "No active session; log in first"})
		return nil, false
	}
	return s, true
}
