// memory.go -- In-process session store and replay guard for single-instance
// deployments without Redis. Backed by go-cache, so entries expire on their own.
package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore implements the same session and nonce operations as RedisStore.
// State is lost on restart and not shared between instances.
type MemoryStore struct {
	sessions *cache.Cache
	nonces   *cache.Cache
}

// NewMemoryStore returns an empty store that sweeps expired entries every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: cache.New(cache.NoExpiration, cleanup),
		nonces:   cache.New(cache.NoExpiration, cleanup),
	}
}

// SetSession stores a copy of sess for ttl.
func (s *MemoryStore) SetSession(_ context.Context, tokenHash string, sess Session, ttl time.Duration) error {
	s.sessions.Set(tokenHash, sess, ttl)
	return nil
}

// GetSession returns ErrCacheMiss for missing or expired sessions.
func (s *MemoryStore) GetSession(_ context.Context, tokenHash string) (*Session, error) {
	v, ok := s.sessions.Get(tokenHash)
	if !ok {
		return nil, ErrCacheMiss
	}
	sess := v.(Session)
	return &sess, nil
}

// DeleteSession removes a session. Deleting a missing key is not an error.
func (s *MemoryStore) DeleteSession(_ context.Context, tokenHash string) error {
	s.sessions.Delete(tokenHash)
	return nil
}

// Claim marks nonce as used for ttl. Add is atomic, so concurrent claims of
// the same nonce have exactly one winner.
func (s *MemoryStore) Claim(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	if err := s.nonces.Add(nonce, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// CheckHealth always returns ErrCacheDisabled: there is no Redis to check.
func (s *MemoryStore) CheckHealth(_ context.Context) error {
	return ErrCacheDisabled
}
