package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestNew(t *testing.T) {
	tests := []struct {
		mode    string
		secret  string
		want    string
		wantErr bool
	}{
		{"", "", ModeNone, false},
		{ModeNone, "", ModeNone, false},
		{ModeAPIKey, "k", ModeAPIKey, false},
		{ModeAPIKey, "", "", true},
		{ModeJWT, "s", ModeJWT, false},
		{ModeJWT, "", "", true},
		{"basic", "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.secret, func(t *testing.T) {
			a, err := New(tt.mode, tt.secret)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Mode())
		})
	}

	_, err := New("basic", "x")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestAPIKey(t *testing.T) {
	a := NewAPIKey("s3cret")

	_, err := a.Authenticate(request(nil))
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = a.Authenticate(request(map[string]string{APIKeyHeader: "wrong"}))
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	p, err := a.Authenticate(request(map[string]string{APIKeyHeader: "s3cret"}))
	require.NoError(t, err)
	assert.Equal(t, "api_key", p)
}

func TestJWT(t *testing.T) {
	a, err := New(ModeJWT, "test-secret")
	require.NoError(t, err)
	verifier := NewJWTVerifier([]byte("test-secret"))

	valid, err := verifier.Generate("agent-1", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Generate("agent-1", -time.Hour)
	require.NoError(t, err)
	foreign, err := NewJWTVerifier([]byte("other")).Generate("agent-1", time.Hour)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		err    error
	}{
		{"missing", "", ErrMissingCredentials},
		{"not bearer", "Basic abc", ErrInvalidToken},
		{"expired", "Bearer " + expired, ErrExpiredToken},
		{"wrong secret", "Bearer " + foreign, ErrInvalidToken},
		{"no subject", "Bearer " + noSub, ErrMissingClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(request(map[string]string{"Authorization": tt.header}))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	p, err := a.Authenticate(request(map[string]string{"Authorization": "Bearer " + valid}))
	require.NoError(t, err)
	assert.Equal(t, "agent-1", p)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	p, ok := PrincipalFrom(WithPrincipal(context.Background(), "agent-1"))
	assert.True(t, ok)
	assert.Equal(t, "agent-1", p)
}
