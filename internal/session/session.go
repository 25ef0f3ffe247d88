// Package session holds login sessions in an expiring in-memory store.
// A session is created on login, cleared on logout, and carries the
// authenticated user's public profile; callers pass the bearer token
// with every request instead of relying on any implicit global state.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/formype/lax-qlpm/internal/model"
)

// Manager issues and resolves bearer tokens.
type Manager struct {
	sessions *cache.Cache
}

// NewManager creates a session manager whose sessions expire after ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{sessions: cache.New(ttl, 2*ttl)}
}

// Create starts a session for the given user and returns its token.
func (m *Manager) Create(user model.User) string {
	token := uuid.NewString()
	m.sessions.Set(token, user.Public(), cache.DefaultExpiration)
	return token
}

// Get resolves a token to its session user.
func (m *Manager) Get(token string) (model.User, bool) {
	v, ok := m.sessions.Get(token)
	if !ok {
		return model.User{}, false
	}
	return v.(model.User), true
}

// Update replaces the stored profile for a live session, e.g. after a
// password change clears the default-password flag.
func (m *Manager) Update(token string, user model.User) {
	if _, ok := m.sessions.Get(token); ok {
		m.sessions.Set(token, user.Public(), cache.DefaultExpiration)
	}
}

// Delete ends a session.
func (m *Manager) Delete(token string) {
	m.sessions.Delete(token)
}
