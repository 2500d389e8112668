// oauth.go
//
// Stub token exchanger and user-info fetcher, so handler tests can drive a
// real oauth.Flow without a provider.
package testutil

import (
	"context"
	"sync"

	"github.com/MGallo-Code/keyhole/internal/oauth"
)

// ExchangeCall records the arguments of one Exchange call.
type ExchangeCall struct {
	Code        string
	RedirectURI string
	Verifier    string
}

// StubExchanger implements oauth.TokenExchanger. Returns Token, or Err when set.
type StubExchanger struct {
	Token string
	Err   error

	mu    sync.Mutex
	calls []ExchangeCall
}

func (s *StubExchanger) Exchange(_ context.Context, _ oauth.ProviderConfig, code, redirectURI, verifier string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, ExchangeCall{code, redirectURI, verifier})
	s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return s.Token, nil
}

// Calls returns a copy of every Exchange call so far.
func (s *StubExchanger) Calls() []ExchangeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExchangeCall(nil), s.calls...)
}

// StubFetcher implements oauth.UserInfoFetcher. Returns a copy of User with
// Provider set, or Err when set.
type StubFetcher struct {
	User oauth.UserInfo
	Err  error
}

func (s *StubFetcher) Fetch(_ context.Context, provider string, _ oauth.ProviderConfig, _ string) (*oauth.UserInfo, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	u := s.User
	u.Provider = provider
	return &u, nil
}
