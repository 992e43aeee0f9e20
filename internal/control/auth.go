package control

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned when a TCP control connection's bearer token
// fails to match the configured hash.
var ErrUnauthorized = errors.New("control: unauthorized")

// TokenAuthenticator gates TCP control connections behind a bcrypt-hashed
// bearer token, since (unlike a UNIX socket) a TCP listener gets no kernel
// guarantee about who is on the other end of the connection.
type TokenAuthenticator struct {
	hash []byte
}

// NewTokenAuthenticator hashes plaintext with bcrypt's default cost for
// later comparison against presented tokens.
func NewTokenAuthenticator(plaintext string) (*TokenAuthenticator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &TokenAuthenticator{hash: hash}, nil
}

// NewTokenAuthenticatorFromHash wraps an already-hashed token, e.g. one
// loaded from config.
func NewTokenAuthenticatorFromHash(hash []byte) *TokenAuthenticator {
	return &TokenAuthenticator{hash: hash}
}

// Verify reports whether token matches the stored hash.
func (t *TokenAuthenticator) Verify(token string) error {
	if err := bcrypt.CompareHashAndPassword(t.hash, []byte(token)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// VerifyConstantTime compares two already-known-length tokens in constant
// time, for callers that pre-hash at connection setup and need a cheaper
// per-message check than bcrypt allows.
func VerifyConstantTime(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

