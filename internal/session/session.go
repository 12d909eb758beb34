// Package session tracks the authenticated identity and tells
// interested components when it changes. The manager owns the single
// source of truth for "who is logged in"; everything else reacts
// through OnChange listeners.
package session

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Identity describes the authenticated user. The zero value means
// anonymous.
type Identity struct {
	UID string
}

// Anonymous reports whether no user is logged in.
func (id Identity) Anonymous() bool {
	return id.UID == ""
}

// Listener receives the previous and the new identity on every
// transition.
type Listener func(prev, next Identity)

// Boundary exposes the current identity and change notification.
// Components that only react to login state depend on this rather
// than on the full Manager.
type Boundary interface {
	// Current returns the identity in effect right now.
	Current() Identity

	// OnChange registers a listener called on every identity
	// transition. Listeners registered after login has already
	// happened do not receive a catch-up call.
	OnChange(fn Listener)
}

// Manager is the concrete session boundary. It validates bearer
// tokens, derives the identity, and fans out transitions to listeners
// exactly once each.
type Manager struct {
	secret []byte
	logger *log.Logger

	mu        sync.Mutex
	current   Identity
	listeners []Listener
}

// NewManager creates a session manager validating tokens against the
// given HMAC secret. If logger is nil, logging goes to stderr.
func NewManager(secret []byte, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Manager{secret: secret, logger: logger}
}

// Current returns the identity in effect right now.
func (m *Manager) Current() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnChange registers a listener for identity transitions.
func (m *Manager) OnChange(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// SetToken validates the token and, if it names a different user than
// the current identity, performs a login transition. Setting a token
// for the already logged-in user is a no-op and notifies nobody.
func (m *Manager) SetToken(token string) error {
	uid, err := m.parseUID(token)
	if err != nil {
		return fmt.Errorf("invalid session token: %w", err)
	}
	m.transition(Identity{UID: uid})
	return nil
}

// Clear logs the current user out. Clearing an anonymous session is a
// no-op.
func (m *Manager) Clear() {
	m.transition(Identity{})
}

func (m *Manager) transition(next Identity) {
	m.mu.Lock()
	prev := m.current
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.current = next
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	switch {
	case next.Anonymous():
		m.logger.Printf("logged out uid=%s", prev.UID)
	case prev.Anonymous():
		m.logger.Printf("logged in uid=%s", next.UID)
	default:
		m.logger.Printf("switched user uid=%s -> uid=%s", prev.UID, next.UID)
	}

	// Listeners run outside the lock so they can call back into the
	// manager without deadlocking.
	for _, fn := range listeners {
		fn(prev, next)
	}
}

func (m *Manager) parseUID(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("reading subject claim: %w", err)
	}
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
