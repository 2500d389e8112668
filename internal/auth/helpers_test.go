package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/MGallo-Code/keyhole/internal/oauth"
	"github.com/MGallo-Code/keyhole/internal/testutil"
	"github.com/go-chi/chi/v5"
)

// --- Shared helpers ---

const testBaseURL = "https://app.example.com"

// testEnv bundles a handler with the stubs behind it.
type testEnv struct {
	h        *AuthHandler
	sessions *testutil.MockSessionStore
	recorder *testutil.MockRecorder
	exch     *testutil.StubExchanger
	fetch    *testutil.StubFetcher
	router   http.Handler
}

// newTestEnv wires a real Flow with google configured and facebook left
// unconfigured. replay may be nil.
func newTestEnv(t *testing.T, replay oauth.ReplayGuard) *testEnv {
	t.Helper()

	reg := oauth.NewRegistry()
	if err := reg.Configure("google", "google-client", "google-secret"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	states, err := oauth.NewStateCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewStateCodec: %v", err)
	}

	exch := &testutil.StubExchanger{Token: "access-token"}
	fetch := &testutil.StubFetcher{User: oauth.UserInfo{
		ID:               "1234",
		Email:            "ada@example.com",
		Name:             "Ada Lovelace",
		GivenName:        "Ada",
		AvatarURL:        "https://img.example.com/ada.png",
		AdditionalClaims: map[string]string{"locale": "en", "sub": "raw-sub"},
	}}

	flow, err := oauth.NewFlow(reg, states, exch, fetch, oauth.FlowOptions{
		BaseURL:              testBaseURL,
		DefaultRedirect:      "/",
		AllowedRedirectHosts: []string{"docs.example.com"},
		Replay:               replay,
	})
	if err != nil {
		t.Fatalf("NewFlow: %v", err)
	}

	env := &testEnv{
		sessions: testutil.NewMockSessionStore(),
		recorder: &testutil.MockRecorder{},
		exch:     exch,
		fetch:    fetch,
	}
	env.h = &AuthHandler{
		Flow:         flow,
		Sessions:     env.sessions,
		Recorder:     env.recorder,
		SessionTTL:   time.Hour,
		CookieSecure: true,
		LoginPath:    "/oauth/login",
	}
	env.router = newTestRouter(env.h)
	return env
}

// newTestRouter mounts the handlers on the same paths main.go uses.
func newTestRouter(h *AuthHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.CheckHealth)
	r.Get("/oauth/login/{provider}", h.Login)
	r.Get("/oauth/callback/{provider}", h.Callback)
	r.Get("/oauth/logout", h.Logout)
	r.Post("/oauth/logout", h.Logout)
	r.Get("/oauth/providers", h.Providers)
	r.With(h.RequireSession).Get("/oauth/me", h.Me)
	return r
}

// do sends a request through the router, attaching cookies.
func (e *testEnv) do(method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

// loginState runs the login redirect and returns the state parameter sent to the provider.
func (e *testEnv) loginState(t *testing.T, provider, redirectURI string) string {
	t.Helper()
	target := "/oauth/login/" + provider
	if redirectURI != "" {
		target += "?redirectUri=" + url.QueryEscape(redirectURI)
	}
	w := e.do(http.MethodGet, target)
	if w.Code != http.StatusFound {
		t.Fatalf("login: expected 302, got %d: %s", w.Code, w.Body.String())
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("login: bad Location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("login: Location has no state parameter")
	}
	return state
}

// sessionCookie returns the session cookie set on w, or nil.
func sessionCookie(w *httptest.ResponseRecorder, secure bool) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName(secure) {
			return c
		}
	}
	return nil
}
