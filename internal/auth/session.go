// session.go

// Session token generation, cookie management, and session claims.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/MGallo-Code/keyhole/internal/oauth"
)

// GenerateToken returns 256-bit random session token and its SHA-256 hash.
// Token goes in the cookie; hash goes in storage.
func GenerateToken() (*[32]byte, *[32]byte, error) {
	var token [32]byte
	_, err := rand.Read(token[:])
	if err != nil {
		return nil, nil, fmt.Errorf("generating token with rand: %w", err)
	}
	hash := sha256.Sum256(token[:])
	return &token, &hash, nil
}

// storeKey encodes a token hash as the session store key.
func storeKey(hash [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// SessionCookieName is __Host-session when secure, plain "session" otherwise.
// Browsers reject __Host- cookies without the Secure flag.
func SessionCookieName(secure bool) string {
	if secure {
		return "__Host-session"
	}
	return "session"
}

// SetSessionCookie writes the session cookie with HttpOnly, SameSite=Lax.
func SetSessionCookie(w http.ResponseWriter, rawToken [32]byte, expiresAt time.Time, secure bool) {
	// Convert vars and set cookie ( *  v  * )
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName(secure),
		Value:    base64.RawURLEncoding.EncodeToString(rawToken[:]),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
	})
}

// ClearSessionCookie overwrites the session cookie with MaxAge=-1 to trigger browser deletion.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	// Essentially just nulling out cookie by setting new expired vals
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName(secure),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// SessionClaims flattens a login into the claim set stored with the session.
// Canonical claims overwrite additional claims of the same name.
func SessionClaims(user *oauth.UserInfo) map[string]string {
	claims := make(map[string]string, len(user.AdditionalClaims)+7)
	for k, v := range user.AdditionalClaims {
		claims[k] = v
	}
	claims["sub"] = user.ID
	claims["name"] = user.Name
	claims["email"] = user.Email
	claims["provider"] = user.Provider
	claims["avatar_url"] = user.AvatarURL
	if user.GivenName != "" {
		claims["given_name"] = user.GivenName
	}
	if user.FamilyName != "" {
		claims["family_name"] = user.FamilyName
	}
	return claims
}
