// Package session holds the signed-in staff member's bearer token for the
// lifetime of the process. Login populates it, Logout clears it, and the
// ledger client reads it on every request.
package session

import (
	"errors"
	"sync"
	"time"

	"pledge-desk/internal/pkg/jwt"
)

var ErrNotSignedIn = errors.New("not signed in")

// Session is safe for concurrent use
type Session struct {
	mu        sync.RWMutex
	token     string
	username  string
	role      string
	expiresAt time.Time
	now       func() time.Time
}

// New returns an empty (signed-out) session
func New() *Session {
	return &Session{now: time.Now}
}

// Login stores token. Tokens that are not JWTs are accepted as opaque
// bearer tokens with no known expiry.
func (s *Session) Login(token string) error {
	if token == "" {
		return ErrNotSignedIn
	}

	var username, role string
	var expiresAt time.Time
	if claims, err := jwt.ParseUnverified(token); err == nil {
		username = claims.Username
		role = claims.Role
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		return jwt.ErrTokenExpired
	}
	s.token = token
	s.username = username
	s.role = role
	s.expiresAt = expiresAt
	return nil
}

// Logout clears the session
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.username = ""
	s.role = ""
	s.expiresAt = time.Time{}
}

// Token returns the bearer token, or ErrNotSignedIn when there is none or
// it has expired
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotSignedIn
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", jwt.ErrTokenExpired
	}
	return s.token, nil
}

// Active reports whether a usable token is held
func (s *Session) Active() bool {
	_, err := s.Token()
	return err == nil
}

// Username of the signed-in staff member, if the token carried one
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Role of the signed-in staff member, if the token carried one
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}
