// stores.go
//
// Shared mock implementations of auth.SessionStore, auth.HealthChecker, and events.Recorder.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/MGallo-Code/keyhole/internal/store"
)

// MockSessionStore implements auth.SessionStore for tests.
// Always stateful...Sessions is a map, like a real store.
// Use *Err fields to inject errors for specific operations.
type MockSessionStore struct {
	// Error injection...zero value means no error
	SetSessionErr    error
	GetSessionErr    error
	DeleteSessionErr error
	HealthErr        error

	Sessions map[string]store.Session // keyed by base64 token hash
	TTLs     map[string]time.Duration

	mu sync.Mutex
}

// NewMockSessionStore returns an empty MockSessionStore ready for use.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		Sessions: make(map[string]store.Session),
		TTLs:     make(map[string]time.Duration),
	}
}

func (m *MockSessionStore) SetSession(_ context.Context, tokenHash string, sess store.Session, ttl time.Duration) error {
	if m.SetSessionErr != nil {
		return m.SetSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Sessions == nil {
		m.Sessions = make(map[string]store.Session)
		m.TTLs = make(map[string]time.Duration)
	}
	m.Sessions[tokenHash] = sess
	m.TTLs[tokenHash] = ttl
	return nil
}

func (m *MockSessionStore) GetSession(_ context.Context, tokenHash string) (*store.Session, error) {
	if m.GetSessionErr != nil {
		return nil, m.GetSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Sessions[tokenHash]
	if !ok {
		return nil, store.ErrCacheMiss
	}
	return &s, nil
}

func (m *MockSessionStore) DeleteSession(_ context.Context, tokenHash string) error {
	if m.DeleteSessionErr != nil {
		return m.DeleteSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Sessions, tokenHash)
	return nil
}

func (m *MockSessionStore) CheckHealth(_ context.Context) error {
	return m.HealthErr
}

// Len returns the number of stored sessions.
func (m *MockSessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sessions)
}

// MockHealth implements auth.HealthChecker; Err is returned from every check.
type MockHealth struct {
	Err error
}

func (m *MockHealth) CheckHealth(_ context.Context) error {
	return m.Err
}

// MockRecorder implements events.Recorder, keeping every login it receives.
type MockRecorder struct {
	Err error

	mu      sync.Mutex
	Records []store.LoginRecord
}

func (m *MockRecorder) RecordLogin(_ context.Context, rec store.LoginRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, rec)
	return m.Err
}

// Logins returns a copy of the recorded logins.
func (m *MockRecorder) Logins() []store.LoginRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.LoginRecord(nil), m.Records...)
}
