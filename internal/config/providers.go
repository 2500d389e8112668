// providers.go -- YAML providers file and conversion to oauth.ProviderConfig.
//
// Example:
//
//	default_redirect_uri: /app
//	providers:
//	  github:
//	    client_id: ${GITHUB_CLIENT_ID}
//	    client_secret: ${GITHUB_CLIENT_SECRET}
//	  corp:
//	    client_id: keyhole
//	    authorization_endpoint: https://sso.corp.example/authorize
//	    token_endpoint: https://sso.corp.example/token
//	    userinfo_endpoint: https://sso.corp.example/userinfo
//	    scopes: [openid, email]
//	    fields:
//	      id: [uid]
//	      email: [mail]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/MGallo-Code/keyhole/internal/oauth"
	"gopkg.in/yaml.v3"
)

// FileConfig is the shape of OAUTH_PROVIDERS_FILE.
type FileConfig struct {
	DefaultRedirectURI string                      `yaml:"default_redirect_uri"`
	LoginPath          string                      `yaml:"login_path"`
	LogoutPath         string                      `yaml:"logout_path"`
	Providers          map[string]ProviderSettings `yaml:"providers"`
}

// ProviderSettings is one provider entry. For built-in keys every empty field
// inherits the built-in default; custom keys must name their endpoints.
type ProviderSettings struct {
	ClientID              string          `yaml:"client_id"`
	ClientSecret          string          `yaml:"client_secret"`
	AuthorizationEndpoint string          `yaml:"authorization_endpoint"`
	TokenEndpoint         string          `yaml:"token_endpoint"`
	UserInfoEndpoint      string          `yaml:"userinfo_endpoint"`
	Scopes                []string        `yaml:"scopes"`
	CallbackPath          string          `yaml:"callback_path"`
	UsePKCE               *bool           `yaml:"use_pkce"` // nil = provider default
	Fields                *oauth.FieldMap `yaml:"fields"`
}

// LoadProvidersFile reads path, expands ${VAR} references from the
// environment, and decodes it. Unknown fields are rejected.
func LoadProvidersFile(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers file: %w", err)
	}
	return ParseProviders([]byte(os.ExpandEnv(string(b))))
}

// ParseProviders decodes a providers document.
func ParseProviders(b []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing providers file: %w", err)
	}
	return &fc, nil
}

// ProviderConfig converts s for key. Built-in keys inherit endpoints, scopes,
// and PKCE default; custom keys default to PKCE on and must name the
// authorization, token and user-info endpoints. Endpoints must be absolute
// http(s) URLs.
func (s ProviderSettings) ProviderConfig(key string) (oauth.ProviderConfig, error) {
	cfg := oauth.ProviderConfig{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		AuthURL:      s.AuthorizationEndpoint,
		TokenURL:     s.TokenEndpoint,
		UserInfoURL:  s.UserInfoEndpoint,
		Scopes:       s.Scopes,
		CallbackPath: s.CallbackPath,
	}

	if cfg.CallbackPath != "" && !strings.HasPrefix(cfg.CallbackPath, "/") {
		return oauth.ProviderConfig{}, fmt.Errorf("provider %q: callback_path must start with /", key)
	}

	if def, ok := oauth.BuiltinDefaults(key); ok {
		cfg = cfg.WithDefaults(def)
		cfg.UsePKCE = def.UsePKCE
	} else {
		if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
			return oauth.ProviderConfig{}, fmt.Errorf("provider %q: authorization_endpoint, token_endpoint and userinfo_endpoint are required", key)
		}
		cfg.UsePKCE = true
	}
	for name, endpoint := range map[string]string{
		"authorization_endpoint": cfg.AuthURL,
		"token_endpoint":         cfg.TokenURL,
		"userinfo_endpoint":      cfg.UserInfoURL,
	} {
		if endpoint == "" {
			continue
		}
		if err := checkEndpoint(endpoint); err != nil {
			return oauth.ProviderConfig{}, fmt.Errorf("provider %q: %s: %w", key, name, err)
		}
	}
	if s.UsePKCE != nil {
		cfg.UsePKCE = *s.UsePKCE
	}
	return cfg, nil
}

// checkEndpoint rejects anything but an absolute http(s) URL with a host.
func checkEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%q must be an http or https URL", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", endpoint)
	}
	return nil
}
