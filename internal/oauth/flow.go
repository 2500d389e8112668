// flow.go -- Login initiation and callback handling.
//
// Flow ties the registry, state codec, exchanger, and fetcher together.
// It holds no per-request state; every call is independent and safe to run
// concurrently. State is always validated before any outbound request.
package oauth

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ReplayGuard marks state nonces as used so each state token is accepted once.
type ReplayGuard interface {
	// Claim records nonce for ttl. Returns false if nonce was already claimed.
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// FlowOptions holds deployment settings for a Flow.
type FlowOptions struct {
	// BaseURL is the externally visible origin, e.g. https://app.example.com.
	BaseURL string

	// DefaultRedirect is where users land after login when no redirect was
	// requested, and the base of failure redirects. Defaults to "/".
	DefaultRedirect string

	// AllowedRedirectHosts lists extra hosts accepted in absolute post-login
	// redirects. The BaseURL host is always allowed.
	AllowedRedirectHosts []string

	// Replay, when set, makes every state token single-use.
	Replay ReplayGuard
}

// CallbackRequest carries the query parameters of a provider callback.
type CallbackRequest struct {
	Provider         string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is the outcome of a successful callback.
type CallbackResult struct {
	User        *UserInfo
	RedirectURI string
}

// Flow runs the authorization code flow for every registered provider.
type Flow struct {
	registry  *Registry
	states    *StateCodec
	exchanger TokenExchanger
	fetcher   UserInfoFetcher
	replay    ReplayGuard

	baseURL         string
	baseHost        string
	defaultRedirect string
	allowedHosts    []string
}

// NewFlow returns a Flow. BaseURL must be an absolute http(s) URL.
func NewFlow(registry *Registry, states *StateCodec, exchanger TokenExchanger, fetcher UserInfoFetcher, opts FlowOptions) (*Flow, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || (base.Scheme != "https" && base.Scheme != "http") || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url: %q", opts.BaseURL)
	}

	f := &Flow{
		registry:        registry,
		states:          states,
		exchanger:       exchanger,
		fetcher:         fetcher,
		replay:          opts.Replay,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		baseHost:        strings.ToLower(base.Hostname()),
		defaultRedirect: opts.DefaultRedirect,
	}
	if f.defaultRedirect == "" {
		f.defaultRedirect = "/"
	}
	for _, h := range opts.AllowedRedirectHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			f.allowedHosts = append(f.allowedHosts, h)
		}
	}
	return f, nil
}

// DefaultRedirect returns the post-login landing page.
func (f *Flow) DefaultRedirect() string {
	return f.defaultRedirect
}

// ConfiguredProviders lists the providers users can log in with.
func (f *Flow) ConfiguredProviders() []string {
	return f.registry.ListConfigured()
}

// CallbackURL returns the absolute redirect_uri registered for provider.
func (f *Flow) CallbackURL(provider string) (string, error) {
	cfg, err := f.registry.Get(provider)
	if err != nil {
		return "", err
	}
	return f.baseURL + cfg.callbackPath(normalizeKey(provider)), nil
}

// AuthURL builds the authorization URL for provider. redirectOverride replaces
// the computed callback URL when non-empty. Returns ErrUnknownProvider for
// unregistered keys.
func (f *Flow) AuthURL(provider, state, redirectOverride, verifier string) (string, error) {
	cfg, err := f.registry.Get(provider)
	if err != nil {
		return "", err
	}
	redirectURI := redirectOverride
	if redirectURI == "" {
		redirectURI = f.baseURL + cfg.callbackPath(normalizeKey(provider))
	}
	return BuildAuthURL(cfg, state, redirectURI, verifier), nil
}

// Initiate starts a login with provider and returns the URL to send the user to.
// redirectURI is the post-login destination; empty means DefaultRedirect.
func (f *Flow) Initiate(_ context.Context, provider, redirectURI string) (string, error) {
	cfg, ok := f.registry.Lookup(provider)
	if !ok || !cfg.IsConfigured() {
		return "", fmt.Errorf("%w: %q", ErrUnconfiguredProvider, provider)
	}

	if redirectURI == "" {
		redirectURI = f.defaultRedirect
	} else if !f.RedirectAllowed(redirectURI) {
		return "", fmt.Errorf("%w: %w", ErrInitiation, ErrRedirectNotAllowed)
	}

	var verifier string
	if cfg.UsePKCE {
		verifier = NewVerifier()
	}

	state, err := f.states.Issue(provider, redirectURI, WithVerifier(verifier))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInitiation, err)
	}

	authURL, err := f.AuthURL(provider, state, "", verifier)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInitiation, err)
	}
	return authURL, nil
}

// Callback completes a login. Checks run in a fixed order: provider error,
// missing code, state, replay, exchange, user info. Nothing is sent to the
// provider unless the state token is valid for req.Provider.
func (f *Flow) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	if req.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderError, req.Error)
	}
	if req.Code == "" {
		return nil, ErrMissingCode
	}
	if req.State == "" {
		return nil, ErrInvalidState
	}

	st, ok := f.states.Validate(req.Provider, req.State)
	if !ok {
		return nil, ErrInvalidState
	}

	if f.replay != nil {
		fresh, err := f.replay.Claim(ctx, st.Nonce, f.states.TTL())
		if err != nil {
			return nil, fmt.Errorf("%w: claiming state: %w", ErrOAuthFailure, err)
		}
		if !fresh {
			return nil, fmt.Errorf("%w: state already used", ErrInvalidState)
		}
	}

	cfg, ok := f.registry.Lookup(req.Provider)
	if !ok || !cfg.IsConfigured() {
		return nil, fmt.Errorf("%w: %q", ErrUnconfiguredProvider, req.Provider)
	}

	callbackURL := f.baseURL + cfg.callbackPath(st.Provider)
	accessToken, err := f.exchanger.Exchange(ctx, cfg, req.Code, callbackURL, st.Verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailure, err)
	}
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrOAuthFailure)
	}

	user, err := f.fetcher.Fetch(ctx, st.Provider, cfg, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOAuthFailure, err)
	}

	redirectURI := st.RedirectURI
	if redirectURI == "" {
		redirectURI = f.defaultRedirect
	}
	return &CallbackResult{User: user, RedirectURI: redirectURI}, nil
}

// FailureRedirect returns DefaultRedirect with an error marker:
// error=oauth_error when the provider reported the failure, error=oauth_failed otherwise.
func (f *Flow) FailureRedirect(err error) string {
	marker := "oauth_failed"
	if Category(err) == "provider_error" {
		marker = "oauth_error"
	}
	u, perr := url.Parse(f.defaultRedirect)
	if perr != nil {
		return "/?error=" + marker
	}
	q := u.Query()
	q.Set("error", marker)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedirectAllowed reports whether uri is a safe post-login destination: a
// local absolute path, or an http(s) URL on the base host or an allowed host.
// Control bytes are rejected outright: browsers strip tab and newline, which
// would turn "/\t/host" into a protocol-relative URL.
func (f *Flow) RedirectAllowed(uri string) bool {
	if strings.ContainsFunc(uri, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return false
	}
	if strings.HasPrefix(uri, "/") {
		if strings.HasPrefix(uri, "//") || strings.HasPrefix(uri, "/\\") {
			return false
		}
		u, err := url.Parse(uri)
		return err == nil && u.Scheme == "" && u.Host == ""
	}
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == f.baseHost || slices.Contains(f.allowedHosts, host)
}
