// state.go -- Encrypted, self-contained OAuth state tokens.
//
// A token is base64url(nonce || XChaCha20-Poly1305 ciphertext) over a small
// JSON payload. The AEAD key is derived from an injected secret with HKDF, so
// tokens need no server-side storage and cannot be read or altered by clients.
package oauth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// DefaultStateTTL is how long an issued state token stays valid.
const DefaultStateTTL = 30 * time.Minute

// MinStateSecretLen is the minimum accepted length of the state secret in bytes.
const MinStateSecretLen = 32

// maxClockSkew bounds how far in the future IssuedAt may be.
const maxClockSkew = time.Minute

var stateAAD = []byte("keyhole/oauth-state/v1")

// State is the decoded content of a valid state token.
type State struct {
	Provider    string
	RedirectURI string
	IssuedAt    time.Time
	Nonce       string
	Verifier    string // PKCE code_verifier; empty when PKCE is off
}

// statePayload is the JSON shape sealed inside the token.
type statePayload struct {
	Provider    string `json:"p"`
	RedirectURI string `json:"r,omitempty"`
	IssuedAt    int64  `json:"t"` // unix nanoseconds
	Nonce       string `json:"n"`
	Verifier    string `json:"v,omitempty"`
}

// StateCodec issues and validates state tokens. Safe for concurrent use.
type StateCodec struct {
	aead cipher.AEAD
	ttl  time.Duration
	now  func() time.Time
}

// StateOption customizes a StateCodec.
type StateOption func(*StateCodec)

// WithStateTTL overrides DefaultStateTTL. Non-positive values are ignored.
func WithStateTTL(ttl time.Duration) StateOption {
	return func(c *StateCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StateOption {
	return func(c *StateCodec) { c.now = now }
}

// NewStateCodec derives the token key from secret, which must be at least
// MinStateSecretLen bytes of high-entropy data.
func NewStateCodec(secret []byte, opts ...StateOption) (*StateCodec, error) {
	if len(secret) < MinStateSecretLen {
		return nil, fmt.Errorf("state secret must be at least %d bytes, got %d", MinStateSecretLen, len(secret))
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, stateAAD)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving state key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating state cipher: %w", err)
	}

	c := &StateCodec{aead: aead, ttl: DefaultStateTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the validity window of issued tokens.
func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

// IssueOption adds optional content to an issued token.
type IssueOption func(*statePayload)

// WithVerifier embeds a PKCE code_verifier in the token.
func WithVerifier(verifier string) IssueOption {
	return func(p *statePayload) { p.Verifier = verifier }
}

// Issue returns an opaque token bound to provider, carrying the post-login
// redirect and a fresh random nonce. Two calls never return the same token.
func (c *StateCodec) Issue(provider, redirectURI string, opts ...IssueOption) (string, error) {
	nonce, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generating state nonce: %w", err)
	}

	p := statePayload{
		Provider:    normalizeKey(provider),
		RedirectURI: redirectURI,
		IssuedAt:    c.now().UnixNano(),
		Nonce:       nonce.String(),
	}
	for _, opt := range opts {
		opt(&p)
	}

	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling state: %w", err)
	}

	out := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return "", fmt.Errorf("generating state cipher nonce: %w", err)
	}
	out = c.aead.Seal(out, out, plaintext, stateAAD)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Validate decodes token and checks it was issued for provider within the TTL.
// Every failure returns (State{}, false); it never panics on hostile input.
func (c *StateCodec) Validate(provider, token string) (State, bool) {
	st, err := c.open(token)
	if err != nil {
		return State{}, false
	}
	if st.Provider != normalizeKey(provider) {
		return State{}, false
	}

	now := c.now()
	if now.Sub(st.IssuedAt) > c.ttl {
		return State{}, false
	}
	if st.IssuedAt.Sub(now) > maxClockSkew {
		return State{}, false
	}
	return st, true
}

var errMalformedState = errors.New("malformed state token")

// open decrypts and decodes token without checking provider or age.
func (c *StateCodec) open(token string) (State, error) {
	if token == "" {
		return State{}, errMalformedState
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return State{}, errMalformedState
	}
	if len(raw) < chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return State{}, errMalformedState
	}

	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, stateAAD)
	if err != nil {
		return State{}, errMalformedState
	}

	var p statePayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return State{}, errMalformedState
	}
	if p.Provider == "" || p.Nonce == "" {
		return State{}, errMalformedState
	}

	return State{
		Provider:    p.Provider,
		RedirectURI: p.RedirectURI,
		IssuedAt:    time.Unix(0, p.IssuedAt),
		Nonce:       p.Nonce,
		Verifier:    p.Verifier,
	}, nil
}
