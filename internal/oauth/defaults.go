// defaults.go -- Built-in provider endpoints, scopes, and PKCE defaults.
package oauth

// builtinProviders holds the fixed defaults for the well-known providers.
// Never mutated; NewRegistry and Configure copy from it.
var builtinProviders = map[string]ProviderConfig{
	"google": {
		AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:      []string{"openid", "profile", "email"},
	},
	"microsoft": {
		AuthURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:    "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		UserInfoURL: "https://graph.microsoft.com/v1.0/me",
		Scopes:      []string{"openid", "profile", "email"},
	},
	"github": {
		AuthURL:     "https://github.com/login/oauth/authorize",
		TokenURL:    "https://github.com/login/oauth/access_token",
		UserInfoURL: "https://api.github.com/user",
		Scopes:      []string{"user:email"},
	},
	// Apple returns identity in the id_token only; there is no user-info endpoint.
	"apple": {
		AuthURL:  "https://appleid.apple.com/auth/authorize",
		TokenURL: "https://appleid.apple.com/auth/token",
		Scopes:   []string{"name", "email"},
	},
	"facebook": {
		AuthURL:     "https://www.facebook.com/v18.0/dialog/oauth",
		TokenURL:    "https://graph.facebook.com/v18.0/oauth/access_token",
		UserInfoURL: "https://graph.facebook.com/v18.0/me",
		Scopes:      []string{"email", "public_profile"},
	},
	"twitter": {
		AuthURL:     "https://twitter.com/i/oauth2/authorize",
		TokenURL:    "https://api.twitter.com/2/oauth2/token",
		UserInfoURL: "https://api.twitter.com/2/users/me",
		Scopes:      []string{"tweet.read", "users.read"},
		UsePKCE:     true,
	},
}

// BuiltinDefaults returns the default config for a built-in provider.
func BuiltinDefaults(key string) (ProviderConfig, bool) {
	cfg, ok := builtinProviders[normalizeKey(key)]
	if !ok {
		return ProviderConfig{}, false
	}
	cfg.Scopes = append([]string(nil), cfg.Scopes...)
	return cfg, true
}
