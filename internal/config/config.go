// config.go

// Environment variable and providers file loading and validation.
package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/keyhole/internal/oauth"
)

// Config holds all configuration for keyhole.
type Config struct {
	Port     string
	LogLevel slog.Level

	// BaseURL is the externally visible origin used to build callback URLs.
	BaseURL string

	// StateSecret keys the state token cipher. Decoded from base64, at least 32 bytes.
	StateSecret []byte

	// RedisURL and DatabaseURL are optional. Without Redis, sessions and the
	// state replay guard live in process memory; without Postgres, logins are
	// not recorded.
	RedisURL    string
	DatabaseURL string

	// CookieSecure controls the Secure flag and the __Host- cookie prefix.
	// Default true; only an explicit "false" disables it (local http dev).
	CookieSecure bool

	// SessionTTL defaults to 720h (30d).
	SessionTTL time.Duration

	// StateTTL bounds the login round-trip. Defaults to 30m.
	StateTTL time.Duration

	// HTTPTimeout bounds each outbound provider request. Defaults to 10s.
	HTTPTimeout time.Duration

	// StateSingleUse rejects a state token the second time it is presented.
	// Default true; set OAUTH_STATE_SINGLE_USE=false to disable.
	StateSingleUse bool

	// Route and redirect settings. Defaults: "/", "/oauth/login", "/oauth/logout".
	DefaultRedirect string
	LoginPath       string
	LogoutPath      string

	// AllowedRedirectHosts lists hosts accepted in absolute post-login redirects
	// besides the BaseURL host.
	AllowedRedirectHosts []string

	// Providers holds per-provider settings keyed by lower-cased provider key,
	// merged from OAUTH_PROVIDERS_FILE and OAUTH_<KEY>_* env vars.
	Providers map[string]ProviderSettings
}

// LoadConfig reads environment variables (and the providers file, if set)
// and returns a validated Config.
// Returns an error if PUBLIC_BASE_URL or OAUTH_STATE_SECRET are missing or invalid.
func LoadConfig() (*Config, error) {
	cfg := &Config{Providers: make(map[string]ProviderSettings)}

	// Providers file first; env vars override it below.
	if path := os.Getenv("OAUTH_PROVIDERS_FILE"); path != "" {
		fc, err := LoadProvidersFile(path)
		if err != nil {
			return nil, err
		}
		cfg.DefaultRedirect = fc.DefaultRedirectURI
		cfg.LoginPath = fc.LoginPath
		cfg.LogoutPath = fc.LogoutPath
		for key, p := range fc.Providers {
			cfg.Providers[strings.ToLower(key)] = p
		}
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}

	rawSecret := os.Getenv("OAUTH_STATE_SECRET")
	if rawSecret == "" {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET is required")
	}
	secret, err := base64.StdEncoding.DecodeString(rawSecret)
	if err != nil {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET must be base64: %w", err)
	}
	if len(secret) < oauth.MinStateSecretLen {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET must decode to at least %d bytes", oauth.MinStateSecretLen)
	}
	cfg.StateSecret = secret

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// Attempt to get port num, default to 7865
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	// Default true -- only explicit "false" disables.
	cfg.CookieSecure = os.Getenv("COOKIE_SECURE") != "false"
	cfg.StateSingleUse = os.Getenv("OAUTH_STATE_SINGLE_USE") != "false"

	cfg.SessionTTL = envDuration("SESSION_TTL", 720*time.Hour)
	cfg.StateTTL = envDuration("STATE_TTL", oauth.DefaultStateTTL)
	cfg.HTTPTimeout = envDuration("HTTP_TIMEOUT", oauth.DefaultHTTPTimeout)

	if v := os.Getenv("DEFAULT_REDIRECT_URI"); v != "" {
		cfg.DefaultRedirect = v
	}
	if cfg.DefaultRedirect == "" {
		cfg.DefaultRedirect = "/"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/oauth/login"
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = "/oauth/logout"
	}
	for _, p := range []string{cfg.LoginPath, cfg.LogoutPath} {
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("login_path and logout_path must start with /, got %q", p)
		}
	}

	cfg.AllowedRedirectHosts = envList("ALLOWED_REDIRECT_HOSTS")

	applyProviderEnv(cfg.Providers)

	return cfg, nil
}

// validateBaseURL requires https, except plain http for localhost development.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute url, got %q", raw)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
	}
	return fmt.Errorf("PUBLIC_BASE_URL must start with https:// (http is allowed for localhost only)")
}

// applyProviderEnv overlays OAUTH_<KEY>_CLIENT_ID, OAUTH_<KEY>_CLIENT_SECRET, and
// OAUTH_<KEY>_USE_PKCE onto providers for every built-in and file-declared key.
func applyProviderEnv(providers map[string]ProviderSettings) {
	keys := []string{"google", "microsoft", "github", "apple", "facebook", "twitter"}
	for key := range providers {
		keys = append(keys, key)
	}

	for _, key := range keys {
		prefix := "OAUTH_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_")) + "_"
		p, seen := providers[key]
		changed := false

		if v := os.Getenv(prefix + "CLIENT_ID"); v != "" {
			p.ClientID = v
			changed = true
		}
		if v := os.Getenv(prefix + "CLIENT_SECRET"); v != "" {
			p.ClientSecret = v
			changed = true
		}
		if v := os.Getenv(prefix + "USE_PKCE"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				slog.Warn("invalid env var, ignoring", "key", prefix+"USE_PKCE", "value", v)
			} else {
				p.UsePKCE = &b
				changed = true
			}
		}

		if seen || changed {
			providers[key] = p
		}
	}
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList reads a comma-separated env var, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
