package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusOnly(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
}

func serve(t *testing.T, tokens *Tokens, authorization string) (*httptest.ResponseRecorder, context.Context) {
	t.Helper()
	var capturedCtx context.Context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCtx = r.Context()
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()

	Middleware(tokens, statusOnly)(handler).ServeHTTP(rec, req)
	return rec, capturedCtx
}

func TestMiddleware_ValidToken(t *testing.T) {
	tokens := NewTokens([]string{"evt_valid", "evt_other"})

	rec, ctx := serve(t, tokens, "Bearer evt_valid")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ctx)
	assert.Equal(t, HashToken("evt_valid")[:12], GetCallerFromContext(ctx))
}

func TestMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	rec, _ := serve(t, NewTokens([]string{"evt_valid"}), "bearer evt_valid")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_InvalidToken(t *testing.T) {
	rec, ctx := serve(t, NewTokens([]string{"evt_valid"}), "Bearer evt_invalid")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, ctx)
}

func TestMiddleware_MissingToken(t *testing.T) {
	tokens := NewTokens([]string{"evt_valid"})

	for _, header := range []string{"", "evt_valid", "Basic dXNlcjpwYXNz"} {
		rec, _ := serve(t, tokens, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestNewTokens_IgnoresBlank(t *testing.T) {
	tokens := NewTokens([]string{"", "  ", " evt_a ", "evt_b"})
	assert.Equal(t, 2, tokens.Len())

	_, ok := tokens.Validate("evt_a")
	assert.True(t, ok)
}

func TestGetCallerFromContext_Anonymous(t *testing.T) {
	assert.Equal(t, "", GetCallerFromContext(context.Background()))
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, len(TokenPrefix)+2*TokenLength)
	assert.Equal(t, TokenPrefix, token[:len(TokenPrefix)])

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashToken(t *testing.T) {
	hash := HashToken("evt_test")
	assert.Len(t, hash, 64) // SHA256 hex = 64 chars

	assert.Equal(t, hash, HashToken("evt_test"))
	assert.NotEqual(t, hash, HashToken("evt_different"))
}
