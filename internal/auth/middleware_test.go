package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MGallo-Code/keyhole/internal/store"
	"github.com/MGallo-Code/keyhole/internal/testutil"
	"github.com/gofrs/uuid/v5"
)

// seedSession stores a session expiring at expiresAt and returns its cookie.
func seedSession(t *testing.T, ms *testutil.MockSessionStore, expiresAt time.Time) *http.Cookie {
	t.Helper()
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	ms.Sessions[storeKey(*hash)] = store.Session{
		ID:        uuid.Must(uuid.NewV7()),
		Provider:  "google",
		Subject:   "1234",
		Claims:    map[string]string{"sub": "1234"},
		ExpiresAt: expiresAt,
	}
	w := httptest.NewRecorder()
	SetSessionCookie(w, *token, time.Now().Add(time.Hour), true)
	return sessionCookie(w, true)
}

func TestRequireSession(t *testing.T) {
	ms := testutil.NewMockSessionStore()
	h := &AuthHandler{Sessions: ms, CookieSecure: true}

	var got *store.Session
	protected := h.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid := seedSession(t, ms, time.Now().Add(time.Hour))
	expired := seedSession(t, ms, time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   int
	}{
		{"no cookie", nil, http.StatusUnauthorized},
		{"empty cookie", &http.Cookie{Name: "__Host-session", Value: ""}, http.StatusUnauthorized},
		{"bad encoding", &http.Cookie{Name: "__Host-session", Value: "%%%"}, http.StatusUnauthorized},
		{"unknown token", &http.Cookie{Name: "__Host-session", Value: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"valid", valid, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got = nil
			r := httptest.NewRequest(http.MethodGet, "/oauth/me", nil)
			if tc.cookie != nil {
				r.AddCookie(tc.cookie)
			}
			w := httptest.NewRecorder()
			protected.ServeHTTP(w, r)

			if w.Code != tc.want {
				t.Fatalf("status: expected %d, got %d", tc.want, w.Code)
			}
			if tc.want == http.StatusNoContent && (got == nil || got.Subject != "1234") {
				t.Errorf("session in context: got %+v", got)
			}
		})
	}
}

func TestRequireSession_StoreError(t *testing.T) {
	ms := testutil.NewMockSessionStore()
	cookie := seedSession(t, ms, time.Now().Add(time.Hour))
	ms.GetSessionErr = errors.New("redis down")
	h := &AuthHandler{Sessions: ms, CookieSecure: true}

	called := false
	protected := h.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	r := httptest.NewRequest(http.MethodGet, "/oauth/me", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status: expected 401, got %d", w.Code)
	}
	if called {
		t.Error("next handler ran")
	}
}

func TestStoreKey_MatchesCookieHash(t *testing.T) {
	token, hash, _ := GenerateToken()
	if storeKey(sha256.Sum256(token[:])) != storeKey(*hash) {
		t.Error("store key differs for the same token")
	}
}
