// handler.go -- AuthHandler and the interfaces it consumes.
package auth

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MGallo-Code/keyhole/internal/events"
	"github.com/MGallo-Code/keyhole/internal/metrics"
	"github.com/MGallo-Code/keyhole/internal/oauth"
	"github.com/MGallo-Code/keyhole/internal/store"
)

// SessionStore defines session operations needed by auth handlers.
// Satisfied by *store.RedisStore and *store.MemoryStore, defined here (at consumer) per Go convention.
type SessionStore interface {
	// SetSession stores a session under its token hash for ttl.
	SetSession(ctx context.Context, tokenHash string, sess store.Session, ttl time.Duration) error

	// GetSession returns store.ErrCacheMiss for missing or expired sessions.
	GetSession(ctx context.Context, tokenHash string) (*store.Session, error)

	// DeleteSession removes a session. Deleting a missing key is not an error.
	DeleteSession(ctx context.Context, tokenHash string) error

	// CheckHealth returns store.ErrCacheDisabled for the in-memory store.
	CheckHealth(ctx context.Context) error
}

// HealthChecker is satisfied by *store.PostgresStore.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// AuthHandler serves the login, callback, logout, and session endpoints.
type AuthHandler struct {
	Flow     *oauth.Flow
	Sessions SessionStore

	// Recorder receives every successful login. Nil discards them.
	Recorder events.Recorder

	// DB is reported by /health. Nil means no database is configured.
	DB HealthChecker

	// Metrics may be nil.
	Metrics *metrics.Metrics

	SessionTTL   time.Duration
	CookieSecure bool

	// LoginPath prefixes the login URLs advertised by /oauth/providers.
	LoginPath string
}

// recorder returns the configured Recorder or a no-op.
func (h *AuthHandler) recorder() events.Recorder {
	if h.Recorder == nil {
		return events.NopRecorder{}
	}
	return h.Recorder
}

// providerLabel bounds metric label cardinality: keys not currently
// configured are reported as "other".
func (h *AuthHandler) providerLabel(provider string) string {
	key := strings.ToLower(strings.TrimSpace(provider))
	if slices.Contains(h.Flow.ConfiguredProviders(), key) {
		return key
	}
	return "other"
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already replaced it with the forwarded address when one is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
