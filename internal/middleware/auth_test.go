package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"go-identity-service/internal/model"
)

type stubAuthority struct {
	claims *model.AccessClaims
	role   string
}

func (s *stubAuthority) ValidateAccessToken(tokenString string) (*model.AccessClaims, error) {
	if tokenString != "good-token" || s.claims == nil {
		return nil, model.ErrInvalidToken
	}
	return s.claims, nil
}

func (s *stubAuthority) ResolveRole(_ context.Context, userID string) (string, error) {
	if s.claims == nil || userID != s.claims.Subject {
		return "", errors.New("unknown user")
	}
	return s.role, nil
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	authority := &stubAuthority{claims: &model.AccessClaims{Subject: "user-1", Email: "ada@example.com"}}
	mw := NewAuthMiddleware(authority)

	var seen *model.AccessClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("passes valid bearer tokens and stores claims", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/identity/me", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		mw.RequireAuth(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		require.Equal(t, "user-1", seen.Subject)
	})

	t.Run("rejects missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/identity/me", nil)
		rec := httptest.NewRecorder()

		mw.RequireAuth(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects invalid tokens", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/identity/me", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		mw.RequireAuth(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	authority := &stubAuthority{
		claims: &model.AccessClaims{Subject: "user-1", Email: "ada@example.com"},
		role:   "student",
	}
	mw := NewAuthMiddleware(authority)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := mw.RequireAuth(mw.RequireRoles("admin")(next))

	t.Run("forbids callers without the role", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/audit", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admits callers with the role", func(t *testing.T) {
		authority.role = "admin"
		req := httptest.NewRequest("GET", "/api/v1/audit", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("requires authentication before role checks", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/audit", nil)
		rec := httptest.NewRecorder()

		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
