// Package oauth implements a provider-agnostic OAuth2 authorization code flow.
//
// registry.go -- Provider configuration records and the registry that holds them.
// The registry is built once at startup and only read afterwards, so lookups
// need no locking.
package oauth

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

// ProviderConfig describes one identity provider's endpoints and credentials.
// A provider is usable only when ClientID is set.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string // empty when the provider has no user-info endpoint (apple)
	Scopes       []string
	CallbackPath string // empty resolves to /oauth/callback/{key}
	UsePKCE      bool
}

// IsConfigured reports whether the provider has a client id.
func (c ProviderConfig) IsConfigured() bool {
	return c.ClientID != ""
}

// WithDefaults returns a copy of c with every empty field taken from def.
// UsePKCE is kept from c; callers decide PKCE explicitly.
func (c ProviderConfig) WithDefaults(def ProviderConfig) ProviderConfig {
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = def.ClientSecret
	}
	if c.AuthURL == "" {
		c.AuthURL = def.AuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = def.TokenURL
	}
	if c.UserInfoURL == "" {
		c.UserInfoURL = def.UserInfoURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), def.Scopes...)
	}
	if c.CallbackPath == "" {
		c.CallbackPath = def.CallbackPath
	}
	return c
}

// callbackPath returns the configured callback path or the per-provider default.
func (c ProviderConfig) callbackPath(key string) string {
	if c.CallbackPath != "" {
		return c.CallbackPath
	}
	return "/oauth/callback/" + key
}

// oauth2Config converts c into an x/oauth2 config for the given redirect URI.
// Client credentials always travel in the form body.
func (c ProviderConfig) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Registry maps lower-cased provider keys to their configuration.
type Registry struct {
	providers map[string]ProviderConfig
}

// NewRegistry returns a registry seeded with the built-in providers.
// Built-ins start without credentials and are therefore unconfigured.
func NewRegistry() *Registry {
	r := &Registry{providers: make(map[string]ProviderConfig, len(builtinProviders))}
	for key, cfg := range builtinProviders {
		cfg.Scopes = append([]string(nil), cfg.Scopes...)
		r.providers[key] = cfg
	}
	return r
}

// Register adds or replaces the provider under key. Last write wins.
func (r *Registry) Register(key string, cfg ProviderConfig) {
	r.providers[normalizeKey(key)] = cfg
}

// Configure sets credentials on a built-in provider, keeping its endpoints and scopes.
// Returns ErrUnknownProvider for keys without a built-in default.
func (r *Registry) Configure(key, clientID, clientSecret string) error {
	key = normalizeKey(key)
	def, ok := builtinProviders[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, key)
	}
	cfg := ProviderConfig{ClientID: clientID, ClientSecret: clientSecret, UsePKCE: def.UsePKCE}
	r.providers[key] = cfg.WithDefaults(def)
	return nil
}

// Lookup returns the provider under key, case-insensitively.
func (r *Registry) Lookup(key string) (ProviderConfig, bool) {
	cfg, ok := r.providers[normalizeKey(key)]
	return cfg, ok
}

// Get is Lookup returning ErrUnknownProvider on a miss.
func (r *Registry) Get(key string) (ProviderConfig, error) {
	cfg, ok := r.Lookup(key)
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, key)
	}
	return cfg, nil
}

// IsConfigured reports whether key exists and has a client id.
func (r *Registry) IsConfigured(key string) bool {
	cfg, ok := r.Lookup(key)
	return ok && cfg.IsConfigured()
}

// ListConfigured returns the sorted keys of every configured provider.
func (r *Registry) ListConfigured() []string {
	keys := make([]string, 0, len(r.providers))
	for key, cfg := range r.providers {
		if cfg.IsConfigured() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Keys returns every registered key, configured or not, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
