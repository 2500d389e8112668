// oauth_handler.go -- HTTP handlers for login, callback, logout, and session status.
// Provider-specific behavior lives in internal/oauth; these handlers only map
// flow outcomes onto HTTP responses and manage the session cookie.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MGallo-Code/keyhole/internal/oauth"
	"github.com/MGallo-Code/keyhole/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

// Login handles GET {login_path}/{provider}?redirectUri= -- issues a state token
// and redirects the browser to the provider's consent page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	redirectURI := r.URL.Query().Get("redirectUri")

	authURL, err := h.Flow.Initiate(r.Context(), provider, redirectURI)
	h.Metrics.Initiate(h.providerLabel(provider), oauth.Category(err))
	if err != nil {
		if errors.Is(err, oauth.ErrUnconfiguredProvider) {
			logWarn(r, "oauth login: provider not configured", "provider", provider)
			BadRequest(w, r, fmt.Sprintf("provider '%s' is not configured", provider))
			return
		}
		logWarn(r, "oauth login: initiation failed", "provider", provider, "category", oauth.Category(err), "error", err)
		BadRequest(w, r, "failed to initiate oauth flow")
		return
	}

	logDebug(r, "oauth login: redirecting to provider", "provider", provider)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /oauth/callback/{provider}.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, chi.URLParam(r, "provider"))
}

// CallbackFor returns a callback handler bound to provider, for providers
// registered with a custom callback path that carries no {provider} segment.
func (h *AuthHandler) CallbackFor(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.callback(w, r, provider)
	}
}

// callback completes the flow, establishes a session, and redirects to the
// post-login destination carried in the state token.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request, provider string) {
	start := time.Now()
	q := r.URL.Query()

	res, err := h.Flow.Callback(r.Context(), oauth.CallbackRequest{
		Provider:         provider,
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	category := oauth.Category(err)
	defer func() { h.Metrics.Callback(h.providerLabel(provider), category, time.Since(start)) }()

	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrMissingCode):
			logWarn(r, "oauth callback: missing code", "provider", provider, "category", category)
			BadRequest(w, r, "authorization code is required")
		case errors.Is(err, oauth.ErrInvalidState):
			logWarn(r, "oauth callback: invalid state", "provider", provider, "category", category, "error", err)
			BadRequest(w, r, "invalid state parameter")
		case errors.Is(err, oauth.ErrUnconfiguredProvider):
			logWarn(r, "oauth callback: provider not configured", "provider", provider, "category", category)
			BadRequest(w, r, fmt.Sprintf("provider '%s' is not configured", provider))
		case errors.Is(err, oauth.ErrOAuthFailure):
			logWarn(r, "oauth callback: authentication failed", "provider", provider, "category", category,
				"error", err, "error_description", q.Get("error_description"))
			http.Redirect(w, r, h.Flow.FailureRedirect(err), http.StatusFound)
		default:
			category = "internal_error"
			InternalServerError(w, r, err)
		}
		return
	}

	if err := h.startSession(w, r, res.User); err != nil {
		category = "session_error"
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "oauth user logged in", "provider", res.User.Provider, "subject", res.User.ID)
	http.Redirect(w, r, res.RedirectURI, http.StatusFound)
}

// startSession stores a new session for user, sets its cookie, and hands the
// login to the recorder. Recorder failures are logged, never returned.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *oauth.UserInfo) error {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return err
	}
	sessionID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating session id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(h.SessionTTL)
	claims := SessionClaims(user)

	if err := h.Sessions.SetSession(r.Context(), storeKey(*tokenHash), store.Session{
		ID:        sessionID,
		Provider:  user.Provider,
		Subject:   user.ID,
		Claims:    claims,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, h.SessionTTL); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	SetSessionCookie(w, *token, expiresAt, h.CookieSecure)

	if err := h.recorder().RecordLogin(r.Context(), store.LoginRecord{
		Provider:   user.Provider,
		Subject:    user.ID,
		Email:      user.Email,
		Name:       user.Name,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
		AvatarURL:  user.AvatarURL,
		Claims:     user.AdditionalClaims,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
		At:         now,
	}); err != nil {
		logWarn(r, "oauth callback: failed to record login", "error", err, "provider", user.Provider)
	}
	return nil
}

// Logout handles GET/POST /oauth/logout?redirectUri= -- deletes the session
// (if any), clears the cookie, and redirects. Always succeeds from the client's view.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName(h.CookieSecure)); err == nil && c.Value != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(c.Value); err == nil {
			if err := h.Sessions.DeleteSession(r.Context(), storeKey(sha256.Sum256(raw))); err != nil {
				logWarn(r, "logout: failed to delete session", "error", err)
			}
		}
	}
	ClearSessionCookie(w, h.CookieSecure)

	target := r.URL.Query().Get("redirectUri")
	if target == "" || !h.Flow.RedirectAllowed(target) {
		target = h.Flow.DefaultRedirect()
	}
	logInfo(r, "user logged out")
	http.Redirect(w, r, target, http.StatusFound)
}

// Me handles GET /oauth/me -- returns the claims of the current session.
// Must run behind RequireSession.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		Unauthorized(w, r, "unauthorized")
		return
	}
	writeJSON(w, struct {
		Provider  string            `json:"provider"`
		Subject   string            `json:"subject"`
		Claims    map[string]string `json:"claims"`
		ExpiresAt time.Time         `json:"expires_at"`
	}{sess.Provider, sess.Subject, sess.Claims, sess.ExpiresAt})
}

type providerLink struct {
	Key      string `json:"key"`
	LoginURL string `json:"login_url"`
}

// Providers handles GET /oauth/providers -- lists configured providers with
// their login URLs, in key order.
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimRight(h.LoginPath, "/")
	keys := h.Flow.ConfiguredProviders()
	links := make([]providerLink, 0, len(keys))
	for _, key := range keys {
		links = append(links, providerLink{Key: key, LoginURL: prefix + "/" + key})
	}
	writeJSON(w, struct {
		Providers []providerLink `json:"providers"`
	}{links})
}
