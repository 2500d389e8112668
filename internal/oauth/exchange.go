// exchange.go -- Authorization code to access token exchange.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds each outbound call to a provider.
const DefaultHTTPTimeout = 10 * time.Second

// TokenExchanger trades an authorization code for an access token.
// Any returned error means "no token"; implementations never panic.
type TokenExchanger interface {
	Exchange(ctx context.Context, cfg ProviderConfig, code, redirectURI, verifier string) (string, error)
}

// HTTPExchanger posts the code to the provider token endpoint as a form:
// grant_type, code, redirect_uri, client_id, client_secret, and code_verifier
// when PKCE is in use. JSON and form-encoded responses are both accepted.
type HTTPExchanger struct {
	client *http.Client
}

// NewHTTPExchanger returns an exchanger using client.
// A nil client gets a default client with DefaultHTTPTimeout.
func NewHTTPExchanger(client *http.Client) *HTTPExchanger {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPExchanger{client: client}
}

// Exchange returns the access token from a 2xx token response.
// Non-2xx statuses, unparsable bodies, missing access_token, transport
// errors, and ctx cancellation all return an error wrapping ErrTokenExchange.
func (e *HTTPExchanger) Exchange(ctx context.Context, cfg ProviderConfig, code, redirectURI, verifier string) (string, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	tok, err := cfg.oauth2Config(redirectURI).Exchange(ctx, code, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	return tok.AccessToken, nil
}
