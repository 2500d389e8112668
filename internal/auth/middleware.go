// middleware.go

// Session authentication middleware.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/MGallo-Code/keyhole/internal/store"
)

// contextKey is unexported to prevent collisions with other packages using the same context.
type contextKey string

const sessionKey contextKey = "session"

// SessionFromContext retrieves the authenticated session from context.
// Returns nil and false if RequireSession hasn't run.
func SessionFromContext(ctx context.Context) (*store.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*store.Session)
	return sess, ok
}

// RequireSession validates the session cookie against the session store.
// Injects the session into context on success; returns 401 on failure.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Read the session cookie. If missing or empty, 401 ERR
		sessCookie, err := r.Cookie(SessionCookieName(h.CookieSecure))
		if err != nil {
			logDebug(r, "require session failed", "reason", "missing_session_cookie")
			Unauthorized(w, r, "unauthorized")
			return
		}
		if sessCookie.Value == "" {
			logWarn(r, "require session failed", "reason", "empty_session_cookie")
			Unauthorized(w, r, "unauthorized")
			return
		}
		// Decode the base64 cookie value back to raw bytes. Invalid encoding → 401.
		decoded, err := base64.RawURLEncoding.DecodeString(sessCookie.Value)
		if err != nil {
			logWarn(r, "require session failed", "reason", "invalid_cookie_encoding")
			Unauthorized(w, r, "unauthorized")
			return
		}

		sess, err := h.Sessions.GetSession(r.Context(), storeKey(sha256.Sum256(decoded)))
		if err != nil {
			if errors.Is(err, store.ErrCacheMiss) {
				logWarn(r, "require session failed", "reason", "session_not_found")
			} else {
				logError(r, "require session failed fetching session", "error", err)
			}
			Unauthorized(w, r, "unauthorized")
			return
		}
		// Store TTLs expire keys, but a clock-skewed store can lag behind.
		if !sess.ExpiresAt.After(time.Now()) {
			logWarn(r, "require session failed", "reason", "session_expired")
			Unauthorized(w, r, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}
