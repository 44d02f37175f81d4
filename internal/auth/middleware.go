// Package auth guards job creation with static bearer tokens.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// Context key type for avoiding collisions
type contextKey string

const callerContextKey contextKey = "caller"

// callerIDLength is how much of the token hash identifies a caller in logs.
const callerIDLength = 12

// GetCallerFromContext returns the ID of the token that authenticated the
// request, or "" for anonymous requests.
func GetCallerFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(callerContextKey).(string); ok {
		return id
	}
	return ""
}

// Tokens is the set of accepted tokens, held as hashes.
type Tokens struct {
	hashes map[string]struct{}
}

// NewTokens builds a token set. Blank entries are ignored.
func NewTokens(tokens []string) *Tokens {
	t := &Tokens{hashes: make(map[string]struct{}, len(tokens))}
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			t.hashes[HashToken(token)] = struct{}{}
		}
	}
	return t
}

// Len returns the number of accepted tokens
func (t *Tokens) Len() int {
	return len(t.hashes)
}

// Validate returns the caller ID for an accepted token.
func (t *Tokens) Validate(token string) (string, bool) {
	hash := HashToken(token)
	if _, ok := t.hashes[hash]; !ok {
		return "", false
	}
	return hash[:callerIDLength], true
}

// Middleware returns an HTTP middleware that requires a valid bearer token.
func Middleware(tokens *Tokens, writeError func(w http.ResponseWriter, status int, code, message string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token required")
				return
			}

			caller, ok := tokens.Validate(token)
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
