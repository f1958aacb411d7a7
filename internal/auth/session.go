package auth

import (
	"sync"
	"time"

	"crowd-dashboard/internal/model"
)

// Session is the single source of truth for "am I authenticated". It is
// created on login, destroyed on logout or upstream 401, and consulted
// atomically by everything that needs the token.
type Session struct {
	Token     string
	User      model.User
	ExpiresAt time.Time
}

// SessionStore owns the current session. One instance per process; callers
// never keep their own copy of the token.
type SessionStore struct {
	mu      sync.RWMutex
	session *Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) Set(token string, claims *Claims) Session {
	sess := Session{
		Token: token,
		User: model.User{
			ID:    claims.Subject,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
		},
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
	return sess
}

func (s *SessionStore) Clear() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}

// Token returns the current bearer token, or "" when logged out.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *SessionStore) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Valid reports whether a session exists and has not expired at the given
// instant. Sessions without an expiry are treated as live.
func (s *SessionStore) Valid(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return false
	}
	return s.session.ExpiresAt.IsZero() || now.Before(s.session.ExpiresAt)
}
