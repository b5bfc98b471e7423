// Package auth holds the credential checks a transport runs before a request
// reaches the dispatcher. Which check applies is configuration; what a
// caller may do once admitted is not decided here.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	ModeNone   = "none"
	ModeAPIKey = "api_key"
	ModeJWT    = "jwt"

	APIKeyHeader = "X-API-Key"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrUnknownMode        = errors.New("unknown auth mode")
)

// Authenticator admits or rejects one HTTP request. On success it names
// the caller; anonymous callers are "".
type Authenticator interface {
	Authenticate(r *http.Request) (principal string, err error)
	Mode() string
}

// New builds the authenticator for mode. secret is the API key in api_key
// mode and the HMAC secret in jwt mode.
func New(mode, secret string) (Authenticator, error) {
	switch mode {
	case "", ModeNone:
		return None{}, nil
	case ModeAPIKey:
		if secret == "" {
			return nil, fmt.Errorf("%s: empty key", ModeAPIKey)
		}
		return NewAPIKey(secret), nil
	case ModeJWT:
		if secret == "" {
			return nil, fmt.Errorf("%s: empty secret", ModeJWT)
		}
		return &JWT{verifier: NewJWTVerifier([]byte(secret))}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
}

// None admits everyone.
type None struct{}

func (None) Authenticate(*http.Request) (string, error) { return "", nil }
func (None) Mode() string                                { return ModeNone }

// APIKey admits requests carrying the shared key in X-API-Key.
type APIKey struct {
	key []byte
}

func NewAPIKey(key string) *APIKey {
	return &APIKey{key: []byte(key)}
}

func (a *APIKey) Authenticate(r *http.Request) (string, error) {
	got := r.Header.Get(APIKeyHeader)
	if got == "" {
		return "", ErrMissingCredentials
	}
	if subtle.ConstantTimeCompare([]byte(got), a.key) != 1 {
		return "", ErrInvalidAPIKey
	}
	return "api_key", nil
}

func (a *APIKey) Mode() string { return ModeAPIKey }

// JWT admits requests with a valid "Authorization: Bearer <token>".
type JWT struct {
	verifier *JWTVerifier
}

func (a *JWT) Authenticate(r *http.Request) (string, error) {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	return a.verifier.Verify(token)
}

func (a *JWT) Mode() string { return ModeJWT }

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredentials
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return token, nil
}

type principalKey struct{}

// WithPrincipal records the authenticated caller on ctx.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the caller recorded by WithPrincipal.
func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok
}
