// Package session is the single source of truth for "who is logged in".
// Sessions have an explicit lifecycle: Login initializes one, Logout tears
// it down completely; route guards consult the manager instead of ambient
// state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataflow-studio/backend/pkg/models"
)

// AuthClient is the slice of the engine client the manager needs.
type AuthClient interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error)
	Signup(ctx context.Context, creds models.Credentials) error
}

// Session is one authenticated studio session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager owns all live sessions.
type Manager struct {
	client AuthClient

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager authenticating through client.
func NewManager(client AuthClient) *Manager {
	return &Manager{
		client:   client,
		sessions: make(map[string]*Session),
	}
}

// Login verifies credentials against the engine and initializes a session.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*Session, error) {
	resp, err := m.client.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s := &Session{
		Token:     uuid.New().String(),
		UserID:    resp.UserID,
		Username:  resp.Username,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s, nil
}

// Signup registers a new user with the engine. It does not log the user in.
func (m *Manager) Signup(ctx context.Context, creds models.Credentials) error {
	if err := m.client.Signup(ctx, creds); err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	return nil
}

// Logout tears the session down. Unknown tokens are a no-op.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Get returns the session for a token.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}
