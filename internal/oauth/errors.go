// errors.go -- Sentinel errors and failure categories for the OAuth flow.
package oauth

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a provider key has no registry entry.
var ErrUnknownProvider = errors.New("unknown oauth provider")

// ErrUnconfiguredProvider is returned when a provider exists but has no client id.
var ErrUnconfiguredProvider = errors.New("oauth provider is not configured")

// ErrInitiation wraps any fault raised while building the authorization request.
var ErrInitiation = errors.New("failed to initiate oauth flow")

// ErrRedirectNotAllowed is returned when the post-login redirect is neither a
// local path nor on an allowed host. Initiate wraps it in ErrInitiation.
var ErrRedirectNotAllowed = errors.New("redirect uri not allowed")

// ErrMissingCode is returned by Callback when the provider sent no authorization code.
var ErrMissingCode = errors.New("authorization code is required")

// ErrInvalidState is returned by Callback when the state token is absent, forged,
// expired, bound to another provider, or already used.
var ErrInvalidState = errors.New("invalid state parameter")

// ErrOAuthFailure covers every failure after state validation: token exchange,
// user-info retrieval, and errors reported by the provider itself.
var ErrOAuthFailure = errors.New("oauth authentication failed")

// ErrProviderError is returned when the provider redirected back with an error parameter.
// errors.Is(ErrProviderError, ErrOAuthFailure) holds.
var ErrProviderError = fmt.Errorf("%w: provider reported an error", ErrOAuthFailure)

// ErrTokenExchange is returned by TokenExchanger implementations.
// Callers treat any exchange error as "no access token".
var ErrTokenExchange = errors.New("token exchange failed")

// ErrNoUserInfoEndpoint is returned by Fetch for providers without a user-info endpoint.
var ErrNoUserInfoEndpoint = errors.New("provider has no user-info endpoint")

// ErrUserInfo is returned by Fetch for transport, status, and body failures.
var ErrUserInfo = errors.New("user-info request failed")

// Category maps a flow error to the short label used in logs and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProviderError):
		return "provider_error"
	case errors.Is(err, ErrMissingCode):
		return "missing_code"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUnconfiguredProvider):
		return "unconfigured_provider"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, ErrInitiation):
		return "initiation_failed"
	case errors.Is(err, ErrOAuthFailure):
		return "oauth_failed"
	default:
		return "unknown"
	}
}
