// Package keystore persists the API key collection in a single JSON file.
// Every mutation rewrites the whole file atomically (temp file + rename), so
// a crash mid-write can never leave a truncated store behind.
package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/langtransd/langtrans/internal/model"
)

var (
	// ErrKeyNotFound, ErrKeyRevoked, and ErrKeyExpired are the three
	// validation failure kinds. Handlers collapse all of them into a single
	// 401 so callers cannot probe which keys exist; logs keep them apart.
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyRevoked  = errors.New("api key revoked")
	ErrKeyExpired  = errors.New("api key expired")
)

// keysFile is the on-disk document shape.
type keysFile struct {
	Keys []model.APIKey `json:"keys"`
}

// Store owns the ordered API key collection and its backing file. Mutating
// operations hold the write lock across the full modify-and-persist sequence
// so in-memory state never runs ahead of disk.
type Store struct {
	mu   sync.RWMutex
	path string
	keys []model.APIKey

	now func() time.Time
}

// Open loads the key file at path, creating an empty store if the file does
// not exist yet. The parent directory must exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var f keysFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	s.keys = f.Keys
	return s, nil
}

// Create generates a new key with a crypto-random secret and appends it to
// the store. A ttl of zero means the key never expires. The returned record
// contains the raw secret; it is shown to the admin once and there is no way
// to recover it from a listing afterwards.
func (s *Store) Create(label string, ttl time.Duration) (model.APIKey, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return model.APIKey{}, fmt.Errorf("generate key: %w", err)
	}

	now := s.now().UTC()
	key := model.APIKey{
		Key:       "lt_" + hex.EncodeToString(raw),
		Label:     label,
		CreatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		key.ExpiresAt = &exp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = append(s.keys, key)
	if err := s.persist(); err != nil {
		s.keys = s.keys[:len(s.keys)-1]
		return model.APIKey{}, err
	}
	return key, nil
}

// Validate looks up a presented credential by exact match and checks that it
// is still usable. The error distinguishes not-found, revoked, and expired.
func (s *Store) Validate(presented string) (model.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.keys {
		if s.keys[i].Key != presented {
			continue
		}
		k := s.keys[i]
		if k.Revoked {
			return model.APIKey{}, ErrKeyRevoked
		}
		if k.Expired(s.now()) {
			return model.APIKey{}, ErrKeyExpired
		}
		return k, nil
	}
	return model.APIKey{}, ErrKeyNotFound
}

// Revoke marks a key as revoked and persists the change. It is idempotent:
// revoking an already-revoked key reports false with no write. Revocation is
// one-way; there is no way to reactivate a key.
func (s *Store) Revoke(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.keys {
		if s.keys[i].Key == key {
			return s.revokeAt(i)
		}
	}
	return false, nil
}

// RevokeByPrefix revokes the single key whose secret starts with prefix.
// Listings and the console only ever show prefixes, so this is the revoke
// path that works without the full secret. Returns ErrKeyNotFound when
// nothing matches and an error when the prefix is ambiguous.
func (s *Store) RevokeByPrefix(prefix string) (bool, error) {
	if prefix == "" {
		return false, ErrKeyNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.keys {
		if !strings.HasPrefix(s.keys[i].Key, prefix) {
			continue
		}
		if idx >= 0 {
			return false, fmt.Errorf("prefix %q matches more than one key", prefix)
		}
		idx = i
	}
	if idx < 0 {
		return false, ErrKeyNotFound
	}
	return s.revokeAt(idx)
}

// revokeAt flips the record at i to revoked and persists. Callers must hold
// the write lock.
func (s *Store) revokeAt(i int) (bool, error) {
	if s.keys[i].Revoked {
		return false, nil
	}
	s.keys[i].Revoked = true
	if err := s.persist(); err != nil {
		s.keys[i].Revoked = false
		return false, err
	}
	return true, nil
}

// List returns a copy of all key records in insertion order.
func (s *Store) List() []model.APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.APIKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of stored key records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// persist rewrites the backing file. Callers must hold the write lock. The
// document is written to a temp file in the same directory and renamed over
// the target so readers always see either the old or the new collection.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(keysFile{Keys: s.keys}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".api_keys-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp key file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace key file: %w", err)
	}
	return nil
}
