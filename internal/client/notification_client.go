package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/maintenance-sync/internal/model"

	"go.uber.org/zap"
)

// NotificationClient handles communication with the Notification Service REST
// API. It is the always-available fallback path; the push channel is only a
// low-latency hint on top of it.
type NotificationClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNotificationClient creates a new Notification Service client
func NewNotificationClient(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *NotificationClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ListAll retrieves all notifications for a user
func (c *NotificationClient) ListAll(ctx context.Context, userID int) ([]model.Notification, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d/notifications", c.baseURL, userID)
	return c.list(ctx, url)
}

// ListUnread retrieves only unread notifications for a user
func (c *NotificationClient) ListUnread(ctx context.Context, userID int) ([]model.Notification, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d/notifications?unread_only=true", c.baseURL, userID)
	return c.list(ctx, url)
}

// MarkRead marks a single notification as read and returns its updated state
func (c *NotificationClient) MarkRead(ctx context.Context, notificationID int) (*model.Notification, error) {
	url := fmt.Sprintf("%s/api/v1/notifications/%d/read", c.baseURL, notificationID)

	resp, err := c.put(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notification service returned status code %d", resp.StatusCode)
	}

	var notification model.Notification
	if err := json.NewDecoder(resp.Body).Decode(&notification); err != nil {
		return nil, err
	}
	return &notification, nil
}

// MarkAllRead marks every notification of a user as read and returns the
// number of affected rows
func (c *NotificationClient) MarkAllRead(ctx context.Context, userID int) (int, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d/notifications/read-all", c.baseURL, userID)

	resp, err := c.put(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("notification service returned status code %d", resp.StatusCode)
	}

	var marked model.NotificationMarkResponse
	if err := json.NewDecoder(resp.Body).Decode(&marked); err != nil {
		return 0, err
	}
	return marked.MarkedCount, nil
}

func (c *NotificationClient) list(ctx context.Context, url string) ([]model.Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to reach notification service", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notification service returned status code %d", resp.StatusCode)
	}

	var response model.NotificationListResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	return response.Notifications, nil
}

func (c *NotificationClient) put(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to reach notification service", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return resp, nil
}
