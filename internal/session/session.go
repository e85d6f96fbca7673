package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourorg/maintenance-sync/internal/auth"
	"github.com/yourorg/maintenance-sync/internal/config"
	"github.com/yourorg/maintenance-sync/internal/notification"
	"github.com/yourorg/maintenance-sync/internal/realtime"

	"go.uber.org/zap"
)

// Session owns the realtime resources of one authenticated user: the push
// channel, the notification store, and the coordinator that keeps them
// consistent. It is created on login and torn down on logout; nothing
// connects while unauthenticated.
type Session struct {
	UserID int

	channel     *realtime.Channel
	coordinator *notification.Coordinator
}

// Channel returns the session's push channel
func (s *Session) Channel() *realtime.Channel {
	return s.channel
}

// Coordinator returns the session's notification coordinator
func (s *Session) Coordinator() *notification.Coordinator {
	return s.coordinator
}

// Close stops push delivery and disconnects the channel
func (s *Session) Close() {
	s.coordinator.Stop()
	s.channel.Disconnect()
}

// Manager maintains at most one session per user, process-wide
type Manager struct {
	cfg    config.RealtimeConfig
	auth   *auth.Service
	api    notification.RestAPI
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[int]*Session
}

// NewManager creates a session manager
func NewManager(cfg config.RealtimeConfig, authService *auth.Service, api notification.RestAPI, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		auth:     authService,
		api:      api,
		logger:   logger,
		sessions: make(map[int]*Session),
	}
}

// Login validates the token, then creates and connects the user's session.
// A second login for the same user returns the existing session. A failed
// channel connect does not fail the login: every mutation has a REST
// fallback, so the session starts in the disconnected state instead.
func (m *Manager) Login(ctx context.Context, token string) (*Session, error) {
	userID, err := m.auth.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("login rejected: %w", err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return existing, nil
	}

	store := notification.NewStore()
	channel := realtime.NewChannel(m.cfg, token, m.logger)
	coordinator := notification.NewCoordinator(userID, store, channel, m.api, m.logger)

	s := &Session{
		UserID:      userID,
		channel:     channel,
		coordinator: coordinator,
	}
	m.sessions[userID] = s
	m.mu.Unlock()

	coordinator.Start()

	if _, err := channel.Connect(ctx); err != nil {
		m.logger.Warn("Session starting without push channel",
			zap.Int("user_id", userID),
			zap.Error(err))
	}

	// Seed the store from the authoritative list; a connect-triggered reload
	// may race this, which is harmless since both settle on server state
	if err := coordinator.Reload(ctx); err != nil {
		m.logger.Warn("Initial notification load failed",
			zap.Int("user_id", userID),
			zap.Error(err))
	}

	return s, nil
}

// Logout tears down the user's session. It is a no-op for unknown users.
func (m *Manager) Logout(userID int) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Info("Session closed", zap.Int("user_id", userID))
	}
}

// Get returns the active session for a user, if any
func (m *Manager) Get(userID int) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Reconnect re-establishes a session's push channel after a drop. It is the
// explicit caller-initiated retry; channels never reconnect on their own.
func (m *Manager) Reconnect(ctx context.Context, userID int) error {
	s, ok := m.Get(userID)
	if !ok {
		return fmt.Errorf("no active session for user %d", userID)
	}
	_, err := s.channel.Connect(ctx)
	return err
}
