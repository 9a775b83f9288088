package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cohort/pkg/requestcontext"
)

const signingKey = "test-signing-key"

func signToken(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHMACValidator(t *testing.T) {
	validator := NewHMACValidator(signingKey)

	t.Run("accepts a valid token and returns the subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}, signingKey)
		actor, err := validator.Validate(token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if actor != "alice" {
			t.Fatalf("expected alice, got %q", actor)
		}
	})

	t.Run("rejects a token signed with another key", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"sub": "alice"}, "wrong-key")
		if _, err := validator.Validate(token); err == nil {
			t.Fatal("expected error for wrong key")
		}
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()}, signingKey)
		if _, err := validator.Validate(token); err == nil {
			t.Fatal("expected error for expired token")
		}
	})

	t.Run("rejects a token without a subject", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, signingKey)
		if _, err := validator.Validate(token); err == nil {
			t.Fatal("expected error for missing subject")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := validator.Validate("not.a.jwt"); err == nil {
			t.Fatal("expected error for malformed token")
		}
	})
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := NewHMACValidator(signingKey)

	var seenActor string
	handler := RequireAuth(validator, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenActor = requestcontext.ActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("injects the actor for a valid bearer token", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"sub": "bob", "exp": time.Now().Add(time.Hour).Unix()}, signingKey)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seenActor != "bob" {
			t.Fatalf("expected actor bob, got %q", seenActor)
		}
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a non-bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
