// redis.go -- go-redis backed session store and state replay guard.
//
// Sessions are stored as JSON with a TTL matching session expiry.
// State nonces are claimed with SET NX so each state token is accepted once,
// across every instance sharing the Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL, connects, and pings.
// The returned client is shared by RedisStore and the login event queue.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisStore wraps a Redis client for session and state nonce operations.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client. Closing the client is the caller's concern.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(tokenHash string) string { return fmt.Sprintf("session:%s", tokenHash) }

func stateKey(nonce string) string { return fmt.Sprintf("oauth_state:%s", nonce) }

// SetSession stores a session under its token hash for ttl.
func (s *RedisStore) SetSession(ctx context.Context, tokenHash string, sess Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("caching session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token hash.
// Returns ErrCacheMiss if the key does not exist or has expired.
func (s *RedisStore) GetSession(ctx context.Context, tokenHash string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session by token hash. Deleting a missing key is not an error.
func (s *RedisStore) DeleteSession(ctx context.Context, tokenHash string) error {
	if err := s.rdb.Del(ctx, sessionKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Claim marks a state nonce as used for ttl.
// Returns false if the nonce was already claimed.
func (s *RedisStore) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, stateKey(nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming state nonce: %w", err)
	}
	return ok, nil
}

// CheckHealth pings Redis.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
