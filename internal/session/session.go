// Package session issues and validates admin console sessions. The cookie
// value is an HS256 JWT signed with a per-process random secret, and the
// token's JWT ID is additionally registered in memory so logout (or a server
// restart) genuinely destroys the session rather than waiting for expiry.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is how long an admin session stays valid after login.
const DefaultTTL = time.Hour

// CookieName is the admin session cookie.
const CookieName = "langtrans_session"

var ErrInvalidSession = errors.New("invalid or expired session")

type claims struct {
	jwt.RegisteredClaims
}

// Manager owns the signing secret and the set of live session IDs.
type Manager struct {
	secret []byte
	ttl    time.Duration

	mu   sync.Mutex
	live map[string]time.Time // jti -> expiry

	now func() time.Time
}

// NewManager creates a Manager with a fresh random signing secret. Sessions
// therefore never survive a process restart, which is fine for a
// single-admin console.
func NewManager(ttl time.Duration) (*Manager, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret: secret,
		ttl:    ttl,
		live:   make(map[string]time.Time),
		now:    time.Now,
	}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a new session and returns the signed token for the cookie.
func (m *Manager) Issue() (string, error) {
	now := m.now()
	jti := uuid.NewString()
	expiry := now.Add(m.ttl)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    "langtrans",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	m.live[jti] = expiry
	m.mu.Unlock()
	return token, nil
}

// Validate checks a presented cookie value: signature, expiry, and that the
// session has not been destroyed by logout.
func (m *Manager) Validate(token string) error {
	jti, err := m.parse(token)
	if err != nil {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.live[jti]
	if !ok {
		return ErrInvalidSession
	}
	if !m.now().Before(expiry) {
		delete(m.live, jti)
		return ErrInvalidSession
	}
	return nil
}

// Destroy removes the session named by the token. Unparseable or unknown
// tokens are ignored; logout is best-effort.
func (m *Manager) Destroy(token string) {
	jti, err := m.parse(token)
	if err != nil {
		return
	}
	m.mu.Lock()
	delete(m.live, jti)
	m.mu.Unlock()
}

func (m *Manager) parse(token string) (string, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || c.ID == "" {
		return "", ErrInvalidSession
	}
	return c.ID, nil
}
