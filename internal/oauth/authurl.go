// authurl.go -- Authorization request URLs and PKCE.
package oauth

import "golang.org/x/oauth2"

// NewVerifier returns a fresh PKCE code_verifier: 32 random bytes, base64url, unpadded.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// BuildAuthURL returns the provider authorization URL with response_type=code,
// client_id, redirect_uri, scope, and state. When verifier is non-empty it adds
// code_challenge=S256(verifier) and code_challenge_method=S256.
// Every value is percent-encoded.
func BuildAuthURL(cfg ProviderConfig, state, redirectURI, verifier string) string {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return cfg.oauth2Config(redirectURI).AuthCodeURL(state, opts...)
}
