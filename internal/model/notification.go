package model

import (
	"time"
)

// Notification represents a user notification. The server owns the record;
// this client holds a read-through cache of it.
type Notification struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationListResponse represents a list of notifications with metadata
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	Unread        int            `json:"unread"`
}

// NotificationCountResponse represents the count of unread notifications
type NotificationCountResponse struct {
	Count int `json:"count"`
}

// NotificationMarkResponse represents the response after marking notifications as read
type NotificationMarkResponse struct {
	Success     bool `json:"success"`
	MarkedCount int  `json:"marked_count"`
}
