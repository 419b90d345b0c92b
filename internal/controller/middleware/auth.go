// Package middleware contains HTTP middleware for the job service.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tileexport/internal/auth"
	"tileexport/pkg/api"
)

// callerKey is the context key for the authenticated caller.
type callerKey struct{}

// TokenAuth rejects requests whose bearer token is not one of tokens.
// Tokens are kept only as hashes. With no tokens configured every request
// passes and no caller is attached.
func TokenAuth(tokens []string) func(http.Handler) http.Handler {
	set := auth.NewTokenSet(tokens)

	return func(next http.Handler) http.Handler {
		if set.Empty() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "Invalid authorization header")
				return
			}

			caller, ok := set.Match(parts[1])
			if !ok {
				unauthorized(w, "Invalid authorization token")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithCaller(r.Context(), caller)))
		})
	}
}

// CallerFromContext returns a short, stable identifier of the token that
// authenticated the request, or "" when auth is disabled.
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok {
		return v
	}
	return ""
}

// NewContextWithCaller attaches a caller identifier to ctx.
func NewContextWithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(api.ErrorResponse{Message: message})
}
