// models.go -- Shared domain types for the store package.
// Used by Redis and in-memory session stores and the Postgres identity store.
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrCacheMiss is returned by GetSession when the key is not present or expired.
// Callers use errors.Is to distinguish a true miss from an infrastructure failure.
var ErrCacheMiss = errors.New("cache miss")

// ErrCacheDisabled is returned by MemoryStore.CheckHealth: Redis is not configured.
// Callers use errors.Is to distinguish "not configured" from a real infrastructure failure.
var ErrCacheDisabled = errors.New("cache disabled")

// Session is the JSON shape stored per logged-in browser, keyed by token hash.
type Session struct {
	ID        uuid.UUID         `json:"id"`
	Provider  string            `json:"provider"`
	Subject   string            `json:"subject"`
	Claims    map[string]string `json:"claims"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// LoginRecord is one successful login, persisted to identities and login_events.
// Empty strings are stored as SQL NULL.
type LoginRecord struct {
	Provider   string            `json:"provider"`
	Subject    string            `json:"subject"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	GivenName  string            `json:"given_name"`
	FamilyName string            `json:"family_name"`
	AvatarURL  string            `json:"avatar_url"`
	Claims     map[string]string `json:"claims"`
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	At         time.Time         `json:"at"`
}

// Identity represents a row in the identities table.
// Nullable columns are pointers -- nil means SQL NULL.
type Identity struct {
	ID           uuid.UUID
	Provider     string
	Subject      string
	Email        *string
	Name         *string
	GivenName    *string
	FamilyName   *string
	AvatarURL    *string
	Claims       map[string]string
	LoginCount   int64
	FirstLoginAt time.Time
	LastLoginAt  time.Time
}
