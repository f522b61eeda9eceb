package model

import (
	"strings"
	"time"
)

// APIKey is one entry in the key file. The Key field holds the raw bearer
// secret: the store matches presented credentials against it exactly, and the
// admin console shows it in full only in the creation response. Records are
// never deleted, only revoked, so the file doubles as an audit trail.
type APIKey struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `json:"revoked"`
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// Usable reports whether the key authorizes requests right now: not revoked
// and not expired.
func (k *APIKey) Usable(now time.Time) bool {
	return !k.Revoked && !k.Expired(now)
}

// Prefix returns the identifying head of the key (scheme prefix plus eight
// hex characters), safe to show in listings and usage logs.
func (k *APIKey) Prefix() string {
	if i := strings.Index(k.Key, "_"); i >= 0 && len(k.Key) >= i+9 {
		return k.Key[:i+9]
	}
	if len(k.Key) > 8 {
		return k.Key[:8]
	}
	return k.Key
}
