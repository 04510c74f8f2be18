// Package signing mints and verifies short-lived capability URLs for stored
// audio. Possession of a valid token grants read access for its lifetime;
// there is no revocation.
package signing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Static errors.
var (
	// ErrSecretEmpty indicates the signer was constructed without a secret.
	ErrSecretEmpty = errors.New("signing secret cannot be empty")
	// ErrKeyMismatch indicates a token presented for a different object key.
	ErrKeyMismatch = errors.New("token does not match requested key")
	// ErrInvalidToken indicates a token that failed signature or expiry
	// checks.
	ErrInvalidToken = errors.New("invalid media token")
)

// mediaPath is the URL prefix under which signed audio is served.
const mediaPath = "/media/"

// claims binds a token to a single object key.
type claims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// Signer mints HS256 tokens scoped to one object key with a bounded
// lifetime.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// New creates a Signer. baseURL is the public origin of the server (e.g.
// "https://study.example.org"); an empty baseURL yields relative URLs.
func New(secret, baseURL string) (*Signer, error) {
	if secret == "" {
		return nil, ErrSecretEmpty
	}

	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sign returns a media URL for key that is valid for ttl.
func (s *Signer) Sign(key string, ttl time.Duration) (string, error) {
	now := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign media token for '%s': %w", key, err)
	}

	return s.baseURL + mediaPath + url.PathEscape(key) + "?token=" + url.QueryEscape(signed), nil
}

// Verify checks that tokenString is a currently valid token for key.
func (s *Signer) Verify(key, tokenString string) error {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{},
		func(_ *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return ErrInvalidToken
	}

	if tokenClaims.Key != key {
		return ErrKeyMismatch
	}

	return nil
}

// WithClock overrides the signer's time source. Tests use it to drive
// expiry deterministically.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now

	return s
}
