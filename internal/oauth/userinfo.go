// userinfo.go -- Authenticated profile retrieval from the provider.
package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// maxUserInfoBytes caps the profile body read from a provider.
const maxUserInfoBytes = 1 << 20

// UserInfoFetcher retrieves and normalizes the profile for an access token.
type UserInfoFetcher interface {
	Fetch(ctx context.Context, provider string, cfg ProviderConfig, accessToken string) (*UserInfo, error)
}

// HTTPFetcher GETs the user-info endpoint with a bearer token and maps the
// JSON body through Normalizers.
type HTTPFetcher struct {
	client      *http.Client
	normalizers *Normalizers
}

// NewHTTPFetcher returns a fetcher using client and normalizers.
// Nil arguments get a DefaultHTTPTimeout client and NewNormalizers().
func NewHTTPFetcher(client *http.Client, normalizers *Normalizers) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if normalizers == nil {
		normalizers = NewNormalizers()
	}
	return &HTTPFetcher{client: client, normalizers: normalizers}
}

// Fetch returns the normalized profile. Providers without a user-info endpoint
// fail with ErrNoUserInfoEndpoint before any request is made; transport errors,
// non-2xx statuses, and non-object bodies fail with ErrUserInfo.
func (f *HTTPFetcher) Fetch(ctx context.Context, provider string, cfg ProviderConfig, accessToken string) (*UserInfo, error) {
	if cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoUserInfoEndpoint, provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrUserInfo, err)
	}
	req.Header.Set("Accept", "application/json")

	// The oauth2 transport adds "Authorization: Bearer <token>" to every request.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	client.Timeout = f.client.Timeout

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrUserInfo, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	info, err := f.normalizers.Normalize(provider, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInfo, err)
	}
	return info, nil
}
