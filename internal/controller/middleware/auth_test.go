package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"tileexport/internal/auth"
)

func TestTokenAuth_MissingAuthHeader(t *testing.T) {
	middleware := TokenAuth([]string{"secret"})

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestTokenAuth_InvalidAuthHeaderFormat(t *testing.T) {
	middleware := TokenAuth([]string{"secret"})

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "secret"},
		{"wrong prefix", "Basic secret"},
		{"too many parts", "Bearer secret extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestTokenAuth_InvalidToken(t *testing.T) {
	middleware := TokenAuth([]string{"secret"})

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestTokenAuth_ValidToken(t *testing.T) {
	middleware := TokenAuth([]string{"first", "second"})

	var caller string
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer second")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusOK)
	}
	if want := auth.HashKey("second")[:12]; caller != want {
		t.Errorf("got caller %q, want %q", caller, want)
	}
}

func TestTokenAuth_DisabledWithoutTokens(t *testing.T) {
	middleware := TokenAuth([]string{"", "  "})

	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if c := CallerFromContext(r.Context()); c != "" {
			t.Errorf("expected no caller, got %q", c)
		}
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("expected handler to be called when auth is disabled")
	}
}

func TestCallerFromContext_Empty(t *testing.T) {
	if c := CallerFromContext(context.Background()); c != "" {
		t.Errorf("expected empty caller, got %q", c)
	}
}
