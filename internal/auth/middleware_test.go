package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/common"
)

type stubParser struct {
	email string
	err   error
}

func (s stubParser) ParseToken(context.Context, string) (string, error) {
	return s.email, s.err
}

func principalRecorder(captured *common.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = common.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatePassesAnonymousGuest(t *testing.T) {
	t.Parallel()
	var got common.Principal
	m := Middleware{Parser: stubParser{}}
	req := httptest.NewRequest(http.MethodGet, "/carts", nil)
	req.Header.Set(AnonHeader, "guest-abc123")
	rec := httptest.NewRecorder()

	m.Authenticate(principalRecorder(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "guest-abc123", got.AnonID)
	require.True(t, got.Anonymous())
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	t.Parallel()
	m := Middleware{Parser: stubParser{}}
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	m.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	t.Parallel()
	m := Middleware{Parser: stubParser{err: errors.New("expired")}}
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()

	m.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminChecksAllowlist(t *testing.T) {
	t.Parallel()
	m := Middleware{
		Parser:      stubParser{email: "starfsfolk@verslun.is"},
		AdminEmails: []string{"Stjori@verslun.is"},
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	m.RequireAdmin(http.NotFoundHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var got common.Principal
	m.Parser = stubParser{email: "stjori@verslun.is"}
	rec = httptest.NewRecorder()
	m.RequireAdmin(principalRecorder(&got)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, got.Admin)
}
